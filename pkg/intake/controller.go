package intake

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/apiresponses"
	"github.com/telekom/leadform/pkg/auth"
	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/session"
	"github.com/telekom/leadform/pkg/store"
	"github.com/telekom/leadform/pkg/submission"
	"github.com/telekom/leadform/pkg/system"
)

// Form is the per-session pair of submission controller and session state.
type Form struct {
	Submission *submission.Controller
	State      *session.State
}

// Busy keeps in-flight forms from being expired.
func (f *Form) Busy() bool { return f.Submission.Busy() }

// LeadRequest is the body of POST /api/leads. Validation happens in the submission
// controller so every caller gets the same sanitization.
type LeadRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Industry string `json:"industry"`
}

type SubmitResponse struct {
	Lead             lead.Lead `json:"lead"`
	ConfirmationSent bool      `json:"confirmationSent"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ListResponse struct {
	Leads []lead.Lead `json:"leads"`
}

// Options wires the controller's collaborators.
type Options struct {
	Store    store.Store
	Notifier submission.Notifier
	Auditor  submission.Auditor
	// SessionTTL is the idle time after which a session's form is dropped.
	SessionTTL time.Duration
	CookieName string
	// Auth verifies optional bearer tokens for listing.
	Auth *auth.AuthHandler
	// SubmitLimiter and ReadLimiter guard the write and read routes.
	SubmitLimiter gin.HandlerFunc
	ReadLimiter   gin.HandlerFunc
	// CORS admits forms embedded on other origins. Nil serves same-origin only.
	CORS gin.HandlerFunc
}

type Controller struct {
	store store.Store
	forms *session.Registry[*Form]
	opts  Options
	log   *zap.SugaredLogger
}

func NewController(opts Options, log *zap.SugaredLogger) *Controller {
	log = log.Named("intake")
	if opts.CookieName == "" {
		opts.CookieName = "leadform_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	c := &Controller{store: opts.Store, opts: opts, log: log}
	c.forms = session.NewRegistry(opts.SessionTTL, func(id string) *Form {
		state := session.NewState()
		ctrl := submission.New(opts.Store, opts.Notifier, state, log,
			submission.WithSessionID(id),
			submission.WithAuditor(opts.Auditor))
		return &Form{Submission: ctrl, State: state}
	}, log)
	return c
}

// Stop ends the session cleanup loop.
func (c *Controller) Stop() {
	c.forms.Stop()
}

// Forms exposes the session registry for tests and metrics.
func (c *Controller) Forms() *session.Registry[*Form] {
	return c.forms
}

func (c *Controller) BasePath() string { return "" }

func (c *Controller) Handlers() []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	if c.opts.CORS != nil {
		hs = append(hs, c.opts.CORS)
	}
	hs = append(hs, session.Middleware(c.opts.CookieName, c.opts.SessionTTL))
	if c.opts.Auth != nil {
		hs = append(hs, c.opts.Auth.Middleware())
	}
	return hs
}

func (c *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("leads", withLimiter(c.opts.SubmitLimiter, c.handleSubmit)...)
	rg.GET("leads", withLimiter(c.opts.ReadLimiter, c.handleList)...)
	rg.GET("session", c.handleSession)
	if c.opts.CORS != nil {
		// preflight is answered by the CORS middleware
		rg.OPTIONS("leads", noContent)
		rg.OPTIONS("session", noContent)
	}
	return nil
}

func noContent(ctx *gin.Context) { ctx.Status(http.StatusNoContent) }

func withLimiter(limiter, h gin.HandlerFunc) []gin.HandlerFunc {
	if limiter == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{limiter, h}
}

func (c *Controller) handleSubmit(ctx *gin.Context) {
	log := system.EnrichReqLoggerWithViewer(ctx, system.GetReqLogger(ctx, c.log))

	var req LeadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Debugw("Malformed lead request", "error", err)
		apiresponses.RespondBadRequest(ctx, "request body must be a JSON object with name, email and industry")
		return
	}

	form := c.forms.Get(session.FromContext(ctx))
	res, err := form.Submission.Submit(ctx.Request.Context(), lead.Input{
		Name:     req.Name,
		Email:    req.Email,
		Industry: req.Industry,
	})

	var (
		vErr *lead.ValidationError
		pErr *lead.PersistenceError
	)
	switch {
	case err == nil && res.Outcome == submission.OutcomeDropped:
		ctx.JSON(http.StatusAccepted, StatusResponse{Status: "in_flight"})
	case err == nil:
		if res.NotificationErr != nil {
			log.Warnw("Lead saved without confirmation email", "leadID", res.Lead.ID, "error", res.NotificationErr)
		}
		ctx.JSON(http.StatusCreated, SubmitResponse{Lead: res.Lead, ConfirmationSent: res.ConfirmationSent})
	case errors.As(err, &vErr):
		apiresponses.RespondBadRequestWithDetails(ctx, "invalid lead", vErr.Field)
	case errors.As(err, &pErr) && pErr.Duplicate():
		apiresponses.RespondConflict(ctx, "this email address is already registered")
	default:
		log.Errorw("Lead submission failed", "error", err)
		apiresponses.RespondBadGateway(ctx, "your details could not be saved, please try again")
	}
}

func (c *Controller) handleSession(ctx *gin.Context) {
	form, ok := c.forms.Lookup(session.FromContext(ctx))
	if !ok {
		ctx.JSON(http.StatusOK, session.Snapshot{Leads: []lead.Lead{}})
		return
	}
	ctx.JSON(http.StatusOK, form.State.Snapshot())
}

func (c *Controller) handleList(ctx *gin.Context) {
	log := system.EnrichReqLoggerWithViewer(ctx, system.GetReqLogger(ctx, c.log))
	viewer := auth.ViewerFromContext(ctx)

	leads, err := c.store.List(ctx.Request.Context(), viewer)
	if err != nil {
		log.Errorw("Listing leads failed", "error", err)
		apiresponses.RespondBadGateway(ctx, "leads could not be loaded")
		return
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	log.Debugw("Listed leads", "authenticated", viewer.Authenticated, "count", len(leads))
	ctx.JSON(http.StatusOK, ListResponse{Leads: leads})
}
