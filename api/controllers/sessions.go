package controllers

import (
	"net/http"

	"github.com/angelmondragon/tableorders-backend/api/responses"
	"github.com/angelmondragon/tableorders-backend/api/validators"
	"github.com/angelmondragon/tableorders-backend/internal/sessions"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/pagination"
)

type submitOrderRequest struct {
	Items []sessions.ItemInput `json:"items" validate:"required,min=1,dive"`
}

type submissionStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type flavorStatusRequest struct {
	FlavorStatus string `json:"flavorStatus" validate:"required"`
}

func sessionsUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sessions service unavailable"))
}

// SubmitOrder opens a session for the table or merges the items into the open one.
// A newly opened session answers 201, a merge answers 200.
func SubmitOrder(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		tableNumber, err := intParam(r, "tableNumber")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req submitOrderRequest
		if err := validators.DecodeJSONBodyLenient(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTableNumber(ctx, tableNumber)
		}
		result, err := svc.CreateOrUpdateSession(ctx, tableNumber, req.Items)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func GetTableSession(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		tableNumber, err := intParam(r, "tableNumber")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.GetSessionByTable(r.Context(), tableNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// IssueReceipt freezes the table's open session. Repeating the call returns the same receipt.
func IssueReceipt(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		tableNumber, err := intParam(r, "tableNumber")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := svc.IssueReceipt(r.Context(), tableNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

func PayTable(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		tableNumber, err := intParam(r, "tableNumber")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := svc.MarkTablePaid(r.Context(), tableNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

// ListSessions serves the staff dashboard. Filters: state, table, limit, cursor.
func ListSessions(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		table, err := validators.ParseQueryOptionalInt(r, "table")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListSessions(r.Context(), sessions.ListParams{
			State:       r.URL.Query().Get("state"),
			TableNumber: table,
			Limit:       limit,
			Cursor:      r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetSession(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.GetSession(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func PaySession(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, id.String())
		}
		receipt, err := svc.MarkSessionPaid(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

// UpdateSubmissionStatus moves one submission forward through
// preparing, accepted, completed, paid.
func UpdateSubmissionStatus(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		submissionNumber, err := intParam(r, "submissionNumber")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req submissionStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseSubmissionStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid submission status"))
			return
		}

		session, err := svc.AdvanceSubmissionStatus(r.Context(), id, submissionNumber, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func UpdateFlavorStatus(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			sessionsUnavailable(w, r, logg)
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineItemID, err := uuidParam(r, "lineItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req flavorStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseFlavorStatus(req.FlavorStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flavor status"))
			return
		}

		session, err := svc.AdvanceFlavorStatus(r.Context(), id, lineItemID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
