package core

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Server bundles the C1-C7 components the router dispatches to. It owns
// no state of its own beyond what those components already hold.
type Server struct {
	intake    *Intake
	query     *Query
	ranking   *Ranking
	entities  *Entities
	metrics   *MetricsService
	startedAt time.Time
	onExit    func()
}

func NewServer(intake *Intake, query *Query, ranking *Ranking, entities *Entities, metrics *MetricsService, onExit func()) *Server {
	return &Server{intake: intake, query: query, ranking: ranking, entities: entities, metrics: metrics, startedAt: time.Now(), onExit: onExit}
}

// NewRouter builds the HTTP route table exactly as spec §6 describes it:
// no auth, no sessions, a uniform {code, reason, message} error envelope.
func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/jobs", s.createJob)
	r.GET("/jobs", s.listJobs)
	r.GET("/jobs/:id", s.getJob)
	r.PUT("/jobs/:id", s.retestJob)

	r.POST("/users", s.putUser)
	r.GET("/users", s.listUsers)

	r.POST("/contests", s.putContest)
	r.GET("/contests", s.listContests)
	r.GET("/contests/:id", s.getContest)
	r.GET("/contests/:id/ranklist", s.getRanklist)

	r.POST("/internal/exit", s.exit)
	r.GET("/internal/status", s.status)

	return r
}

// respondError translates a JudgeError into the wire envelope spec §7
// defines; any other error is treated as an unclassified internal error.
func respondError(c *gin.Context, err error) {
	if je, ok := err.(*JudgeError); ok {
		c.JSON(je.Kind.httpStatus(), gin.H{
			"code":    int(je.Kind),
			"reason":  je.Kind.reason(),
			"message": je.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    int(KindInternal),
		"reason":  KindInternal.reason(),
		"message": err.Error(),
	})
}

type createJobRequest struct {
	SourceCode string `json:"source_code" binding:"required"`
	Language   string `json:"language" binding:"required"`
	UserID     int64  `json:"user_id"`
	ContestID  int64  `json:"contest_id"`
	ProblemID  int64  `json:"problem_id"`
}

func (s *Server) createJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidArgument("%v", err))
		return
	}
	job, err := s.intake.Submit(c.Request.Context(), SubmitRequest{
		SourceCode: req.SourceCode,
		Language:   req.Language,
		UserID:     req.UserID,
		ContestID:  req.ContestID,
		ProblemID:  req.ProblemID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) getJob(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	job, err := s.query.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) retestJob(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	job, err := s.query.Retest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listJobs(c *gin.Context) {
	var filter JobFilter
	if v := c.Query("user_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.UserID = &id
	}
	if v := c.Query("contest_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.ContestID = &id
	}
	if v := c.Query("problem_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.ProblemID = &id
	}
	filter.Language = c.Query("language")
	if v := c.Query("state"); v != "" {
		filter.State = JobState(v)
	}
	if v := c.Query("result"); v != "" {
		filter.Result = Verdict(v)
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, invalidArgument("invalid from: %v", err))
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, invalidArgument("invalid to: %v", err))
			return
		}
		filter.To = &t
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	jobs, total, err := s.query.List(c.Request.Context(), c.Query("user_name"), JobQuery{
		Filter: filter,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "jobs": jobs})
}

type userUpsertRequest struct {
	ID   *int64 `json:"id"`
	Name string `json:"name" binding:"required"`
}

func (s *Server) putUser(c *gin.Context) {
	var req userUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidArgument("%v", err))
		return
	}
	user, err := s.entities.PutUser(c.Request.Context(), UserUpsert{ID: req.ID, Name: req.Name})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.entities.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type contestUpsertRequest struct {
	ID              *int64  `json:"id"`
	Name            string  `json:"name" binding:"required"`
	From            int64   `json:"from"`
	To              int64   `json:"to"`
	ProblemIDs      []int64 `json:"problem_ids"`
	UserIDs         []int64 `json:"user_ids"`
	SubmissionLimit int     `json:"submission_limit"`
}

func (s *Server) putContest(c *gin.Context) {
	var req contestUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidArgument("%v", err))
		return
	}
	contest, err := s.entities.PutContest(c.Request.Context(), ContestUpsert{
		ID:              req.ID,
		Name:            req.Name,
		From:            time.Unix(req.From, 0).UTC(),
		To:              time.Unix(req.To, 0).UTC(),
		ProblemIDs:      req.ProblemIDs,
		UserIDs:         req.UserIDs,
		SubmissionLimit: req.SubmissionLimit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

func (s *Server) listContests(c *gin.Context) {
	contests, err := s.entities.ListContests(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contests": contests})
}

func (s *Server) getContest(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	contest, err := s.entities.GetContest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

func (s *Server) getRanklist(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := s.ranking.Rank(c.Request.Context(), id,
		ScoringRule(c.Query("scoring_rule")),
		TieBreaker(c.Query("tie_breaker")),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranklist": rows})
}

// exit terminates the server process immediately, the same shutdown hook
// the grading harness uses between test runs (spec §6).
func (s *Server) exit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
	if s.onExit != nil {
		go s.onExit()
	}
}

// status reports worker/queue liveness, the "Supplemented Features"
// observability surface layered on top of the judging pipeline itself.
func (s *Server) status(c *gin.Context) {
	st, err := CollectSystemStatus(c.Request.Context(), s.metrics, s.startedAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalidArgument("invalid id %q", raw)
	}
	return id, nil
}
