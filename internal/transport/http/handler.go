// Package httptransport is the thin HTTP layer over the flow service. It
// delegates to domain services without embedding business logic so transport
// concerns remain isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"idv/internal/challenge"
	"idv/internal/flow/plan"
	"idv/internal/flow/record"
	flowservice "idv/internal/flow/service"
	"idv/internal/platform/middleware"
	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/httputil"
	"idv/pkg/platform/sentinel"
)

// FlowService defines the flow operations the transport layer needs.
type FlowService interface {
	Start(ctx context.Context, req flowservice.StartRequest) (*flowservice.Flow, error)
	Submit(ctx context.Context, f *flowservice.Flow, payload map[record.FieldID]record.Value) (plan.ScreenID, error)
	Back(ctx context.Context, f *flowservice.Flow) (plan.ScreenID, error)
	Edit(ctx context.Context, f *flowservice.Flow, target plan.ScreenID) (plan.ScreenID, error)
	SelectChallenge(ctx context.Context, f *flowservice.Flow, kind challenge.Kind) (plan.ScreenID, error)
	RequestChallenge(ctx context.Context, f *flowservice.Flow) (plan.ScreenID, error)
	VerifyChallenge(ctx context.Context, f *flowservice.Flow, response string) (plan.ScreenID, error)
}

// FlowStore is the registry of live flow instances.
type FlowStore interface {
	Put(ctx context.Context, f *flowservice.Flow) error
	Find(ctx context.Context, flowID id.FlowID) (*flowservice.Flow, error)
	Delete(ctx context.Context, flowID id.FlowID) error
}

// Handler handles the flow endpoints.
type Handler struct {
	logger *slog.Logger
	flows  FlowService
	store  FlowStore
}

// New creates a new flow Handler.
func New(flows FlowService, store FlowStore, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		flows:  flows,
		store:  store,
	}
}

// Register registers the flow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	flowRouter := chi.NewRouter()
	flowRouter.Use(middleware.Recovery(h.logger))
	flowRouter.Use(middleware.RequestID)
	flowRouter.Use(middleware.Logger(h.logger))
	flowRouter.Use(middleware.Timeout(30 * time.Second))
	flowRouter.Use(middleware.ContentTypeJSON)
	flowRouter.Post("/flows", h.handleStart)
	flowRouter.Route("/flows/{flowID}", func(fr chi.Router) {
		fr.Get("/", h.handleGet)
		fr.Post("/submit", h.handleSubmit)
		fr.Post("/back", h.handleBack)
		fr.Post("/edit", h.handleEdit)
		fr.Post("/identify", h.handleIdentify)
		fr.Post("/challenge", h.handleChallenge)
		fr.Post("/challenge/verify", h.handleChallengeVerify)
	})

	r.Mount("/", flowRouter)
}

type startRequest struct {
	Requirement struct {
		Missing   []string `json:"missing"`
		Populated []string `json:"populated"`
		Optional  []string `json:"optional"`
	} `json:"requirement"`
	Bootstrap      map[string]fieldValue `json:"bootstrap"`
	AuthToken      string                `json:"auth_token"`
	Variant        string                `json:"variant"`
	PasskeyCapable bool                  `json:"passkey_capable"`
}

type flowResponse struct {
	FlowID    string   `json:"flow_id"`
	Screen    string   `json:"screen"`
	Plan      []string `json:"plan"`
	Completed bool     `json:"completed"`
}

// handleStart resolves a new flow from the caller's requirement and
// bootstrap data.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid start flow request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	start := flowservice.StartRequest{
		Requirement: plan.Requirement{
			Missing:   categories(req.Requirement.Missing),
			Populated: categories(req.Requirement.Populated),
			Optional:  categories(req.Requirement.Optional),
		},
		Bootstrap:      fieldValues(req.Bootstrap),
		AuthToken:      req.AuthToken,
		Variant:        plan.Variant(req.Variant),
		PasskeyCapable: req.PasskeyCapable,
	}
	if start.Variant == "" {
		start.Variant = plan.VariantAuth
	}

	f, err := h.flows.Start(ctx, start)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start flow",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if err := h.store.Put(ctx, f); err != nil {
		h.logger.ErrorContext(ctx, "failed to register flow",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to register flow"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, h.response(f))
}

// handleGet returns the current screen and the frozen plan.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

type submitRequest struct {
	Fields map[string]fieldValue `json:"fields"`
}

// handleSubmit merges the screen payload and advances the flow.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if _, err := h.flows.Submit(ctx, f, fieldValues(req.Fields)); err != nil {
		h.logger.WarnContext(ctx, "screen submission rejected",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", f.ID().String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

// handleBack navigates to the previous required screen.
func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if _, err := h.flows.Back(ctx, f); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

type editRequest struct {
	Screen string `json:"screen"`
}

// handleEdit re-enters a collection screen from the confirm screen.
func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Screen == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "edit target screen is required"))
		return
	}
	if _, err := h.flows.Edit(ctx, f, plan.ScreenID(req.Screen)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

type identifyRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// handleIdentify submits an identification contact. It is the same
// operation as submit on a contact screen, kept separate so the embedding
// UI does not need to know field identifiers for the identification step.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	payload := make(map[record.FieldID]record.Value)
	if req.Email != "" {
		payload[record.FieldEmail] = record.String(req.Email)
	}
	if req.Phone != "" {
		payload[record.FieldPhoneNumber] = record.String(req.Phone)
	}
	if len(payload) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email or phone is required"))
		return
	}

	if _, err := h.flows.Submit(ctx, f, payload); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

type challengeRequest struct {
	Kind string `json:"kind"`
}

// handleChallenge selects a challenge kind, or resends the active
// challenge when no kind is given.
func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var err error
	if req.Kind != "" {
		_, err = h.flows.SelectChallenge(ctx, f, challenge.Kind(req.Kind))
	} else {
		_, err = h.flows.RequestChallenge(ctx, f)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

type verifyRequest struct {
	Response string `json:"response"`
}

// handleChallengeVerify verifies the user's challenge answer.
func (h *Handler) handleChallengeVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Response == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "challenge response is required"))
		return
	}
	if _, err := h.flows.VerifyChallenge(ctx, f, req.Response); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.response(f))
}

// lookup resolves the flow from the URL, writing the error response itself
// when the flow cannot be found.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*flowservice.Flow, bool) {
	ctx := r.Context()
	flowID, err := id.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid flow id"))
		return nil, false
	}
	f, err := h.store.Find(ctx, flowID)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "flow not found"))
			return nil, false
		}
		h.logger.ErrorContext(ctx, "flow lookup failed",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", flowID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "flow lookup failed"))
		return nil, false
	}
	return f, true
}

func (h *Handler) response(f *flowservice.Flow) flowResponse {
	return flowResponse{
		FlowID:    f.ID().String(),
		Screen:    string(f.CurrentScreen()),
		Plan:      screenNames(f.Plan().ScreenIDs()),
		Completed: f.Completed(),
	}
}

func screenNames(ids []plan.ScreenID) []string {
	out := make([]string, len(ids))
	for i, s := range ids {
		out[i] = string(s)
	}
	return out
}

func categories(names []string) []plan.Category {
	out := make([]plan.Category, len(names))
	for i, n := range names {
		out[i] = plan.Category(n)
	}
	return out
}

// fieldValue accepts either a JSON string or a JSON string array, matching
// the two value shapes fields carry.
type fieldValue struct {
	scalar string
	list   []string
	isList bool
}

func (v *fieldValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		v.isList = true
		return json.Unmarshal(data, &v.list)
	}
	return json.Unmarshal(data, &v.scalar)
}

func (v fieldValue) value() record.Value {
	if v.isList {
		return record.List(v.list...)
	}
	return record.String(v.scalar)
}

func fieldValues(in map[string]fieldValue) map[record.FieldID]record.Value {
	if len(in) == 0 {
		return nil
	}
	out := make(map[record.FieldID]record.Value, len(in))
	for k, v := range in {
		out[record.FieldID(k)] = v.value()
	}
	return out
}
