package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"holidaysri-admin/internal/application/command"
	"holidaysri-admin/internal/application/query"
	"holidaysri-admin/internal/application/services"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/errors"
	"holidaysri-admin/pkg/middleware"
	"holidaysri-admin/pkg/payoutapi"
	"holidaysri-admin/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// HTTPPayoutController serves the payout endpoints of every workflow variant
type HTTPPayoutController struct {
	payoutService *services.PayoutService
	validate      *validator.Validate
}

// NewHTTPPayoutController creates a new HTTP payout controller
func NewHTTPPayoutController(payoutService *services.PayoutService, validate *validator.Validate) *HTTPPayoutController {
	return &HTTPPayoutController{payoutService: payoutService, validate: validate}
}

// Mount registers the routes of every variant under its URL domain
func (c *HTTPPayoutController) Mount(r chi.Router) {
	for _, v := range workflow.Variants() {
		def := workflow.MustLookup(v)
		r.Route("/"+def.Domain, func(r chi.Router) {
			r.Get("/requests", c.List(def))
			r.Get("/stats", c.Stats(def))
			r.Get("/requests/{id}", c.Get(def))
			r.Put("/requests/{id}", c.UpdateStatus(def))
			r.Post("/requests/{id}/approve", c.Approve(def))
			r.Post("/requests/{id}/reject", c.Reject(def))
			r.Get("/requests/{id}/history", c.History(def))
			if _, ok := def.Transition(workflow.ActionMarkPaid); ok {
				r.Post("/mark-as-paid/{id}", c.MarkPaid(def))
			}
		})
	}
}

// List handles GET /{domain}/requests?status=&search=&page=&limit=
func (c *HTTPPayoutController) List(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		result, err := c.payoutService.List(r.Context(), query.ListPayoutRequestsQuery{
			Variant: def.Variant,
			Status:  q.Get("status"),
			Search:  q.Get("search"),
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			middleware.HandleError(w, r, err)
			return
		}

		items := make([]payoutapi.PayoutRequest, 0, len(result.Items))
		for _, item := range result.Items {
			items = append(items, toPayoutRequestDTO(item))
		}
		response.SendSuccess(w, r, payoutapi.ListPage{
			Items: items,
			Pagination: payoutapi.Pagination{
				Current: result.Page,
				Pages:   result.Pages,
				Total:   result.Total,
			},
		})
	}
}

// Stats handles GET /{domain}/stats
func (c *HTTPPayoutController) Stats(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := c.payoutService.Stats(r.Context(), def.Variant)
		if err != nil {
			middleware.HandleError(w, r, err)
			return
		}
		response.SendSuccess(w, r, toStatsDTO(stats))
	}
}

// Get handles GET /{domain}/requests/{id}
func (c *HTTPPayoutController) Get(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := c.payoutService.Get(r.Context(), def.Variant, requestID(r))
		if err != nil {
			middleware.HandleError(w, r, err)
			return
		}
		response.SendSuccess(w, r, toPayoutRequestDTO(req))
	}
}

// Approve handles POST /{domain}/requests/{id}/approve
func (c *HTTPPayoutController) Approve(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payoutapi.TransitionBody
		if !c.decode(w, r, &body) {
			return
		}
		c.approve(w, r, def, body.AdminNote)
	}
}

// Reject handles POST /{domain}/requests/{id}/reject
func (c *HTTPPayoutController) Reject(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payoutapi.TransitionBody
		if !c.decode(w, r, &body) {
			return
		}
		c.reject(w, r, def, body.AdminNote)
	}
}

// UpdateStatus handles PUT /{domain}/requests/{id} with a target status
func (c *HTTPPayoutController) UpdateStatus(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payoutapi.UpdateStatusBody
		if !c.decode(w, r, &body) {
			return
		}
		switch workflow.Status(body.Status) {
		case workflow.StatusApproved:
			c.approve(w, r, def, body.AdminNote)
		case workflow.StatusRejected:
			c.reject(w, r, def, body.AdminNote)
		}
	}
}

func (c *HTTPPayoutController) approve(w http.ResponseWriter, r *http.Request, def workflow.Definition, note string) {
	adminID, _ := middleware.GetUserIDFromContext(r.Context())
	req, err := c.payoutService.Approve(r.Context(), command.ApprovePayoutRequest{
		Variant:   def.Variant,
		RequestID: requestID(r),
		AdminID:   adminID,
		AdminNote: note,
	})
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}
	response.SendSuccess(w, r, toPayoutRequestDTO(req))
}

func (c *HTTPPayoutController) reject(w http.ResponseWriter, r *http.Request, def workflow.Definition, note string) {
	adminID, _ := middleware.GetUserIDFromContext(r.Context())
	req, err := c.payoutService.Reject(r.Context(), command.RejectPayoutRequest{
		Variant:   def.Variant,
		RequestID: requestID(r),
		AdminID:   adminID,
		AdminNote: note,
	})
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}
	response.SendSuccess(w, r, toPayoutRequestDTO(req))
}

// MarkPaid handles POST /{domain}/mark-as-paid/{id}. Callers collect the
// admin's confirmation before issuing it.
func (c *HTTPPayoutController) MarkPaid(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payoutapi.MarkPaidBody
		if !c.decode(w, r, &body) {
			return
		}
		adminID, _ := middleware.GetUserIDFromContext(r.Context())

		result, err := c.payoutService.MarkPaid(r.Context(), command.MarkPayoutRequestPaid{
			RequestID:   requestID(r),
			AdminID:     adminID,
			PaymentNote: body.PaymentNote,
			Confirmed:   true,
		})
		if err != nil {
			middleware.HandleError(w, r, err)
			return
		}
		response.SendSuccess(w, r, payoutapi.MarkPaidResult{
			RequestID:       result.RequestID,
			CampaignID:      result.CampaignID,
			AdvertisementID: result.AdvertisementID,
			PaidFundID:      result.PaidFundID,
			EmailSent:       result.EmailSent,
		})
	}
}

// History handles GET /{domain}/requests/{id}/history
func (c *HTTPPayoutController) History(def workflow.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := c.payoutService.History(r.Context(), requestID(r))
		if err != nil {
			middleware.HandleError(w, r, err)
			return
		}
		entries := make([]payoutapi.HistoryEntry, 0, len(records))
		for _, rec := range records {
			if v, ok := rec.Data["variant"].(string); ok && v != string(def.Variant) {
				middleware.HandleError(w, r, errors.NewNotFoundError("payout request history"))
				return
			}
			entries = append(entries, payoutapi.HistoryEntry{
				EventType:  rec.EventType,
				Version:    rec.EventVersion,
				OccurredAt: rec.OccurredAt,
				Data:       rec.Data,
			})
		}
		response.SendSuccess(w, r, entries)
	}
}

// decode reads and validates a JSON body. An empty body decodes to the zero value.
func (c *HTTPPayoutController) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return decodeAndValidate(w, r, c.validate, dst)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		response.SendBadRequest(w, r, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var details []response.ValidationError
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details = append(details, response.ValidationError{
					Field:   fe.Field(),
					Message: "failed on " + fe.Tag(),
				})
			}
		}
		response.SendValidationError(w, r, details)
		return false
	}
	return true
}

// requestID reads the {id} segment. chi matches on the raw path when the
// client escaped the id, so the segment may still carry escapes.
func requestID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}
