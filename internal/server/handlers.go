package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"quantdash/internal/model"
	"quantdash/internal/view"
)

type analyzeForm struct {
	Ticker    string `form:"ticker" binding:"omitempty,max=32"`
	Name      string `form:"name" binding:"omitempty,max=64"`
	BirthDate string `form:"birth_date" binding:"omitempty,max=10"`
	BirthTime string `form:"birth_time" binding:"omitempty,max=5"`
	Gender    string `form:"gender" binding:"omitempty,max=16"`
}

func (f analyzeForm) profile() bool {
	return strings.TrimSpace(f.Ticker) == "" && strings.TrimSpace(f.BirthDate) != ""
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Result": nil, "Form": analyzeForm{}})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	ctx := c.Request.Context()

	var form analyzeForm
	if err := c.ShouldBind(&form); err != nil {
		a := model.Analysis{
			Kind:    model.KindStock,
			At:      time.Now(),
			Failure: &model.Failure{Reason: model.ReasonInvalidInput, Message: "the submitted form is malformed"},
		}
		s.render(c, a, form)
		return
	}

	var a model.Analysis
	if form.profile() {
		a = s.svc.ReadProfile(ctx, model.ProfileRequest{
			Name:      form.Name,
			BirthDate: form.BirthDate,
			BirthTime: form.BirthTime,
			Gender:    form.Gender,
		})
	} else {
		a = s.svc.AnalyzeTicker(ctx, form.Ticker)
	}
	s.render(c, a, form)
}

func (s *Server) render(c *gin.Context, a model.Analysis, form analyzeForm) {
	res := view.NewResult(a)
	if a.Ticker != "" {
		form.Ticker = a.Ticker
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"Result": &res, "Form": form})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDebugYahoo(c *gin.Context) {
	if s.prober == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "market data source has no chart probe"})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("symbol", "AAPL")))
	c.JSON(http.StatusOK, s.prober.ProbeChart(c.Request.Context(), symbol))
}

func (s *Server) handleDebugCorpus(c *gin.Context) {
	if s.corpus == nil {
		c.JSON(http.StatusOK, model.CorpusStatus{State: model.CorpusUnknown})
		return
	}
	refresh := c.Query("refresh") == "1" || c.Query("refresh") == "true"
	c.JSON(http.StatusOK, s.corpus.CorpusStatus(c.Request.Context(), refresh))
}
