package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/time/rate"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine/auth"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/workflow"
)

type workBody struct {
	Body WorkResponse `json:"body"`
}

type workListBody struct {
	Body WorkListResponse `json:"body"`
}

type cycleBody struct {
	Body CycleResponse `json:"body"`
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	perSecond := authCfg.LoginRate
	if perSecond <= 0 {
		perSecond = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), 5)
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a bearer token for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusTooManyRequests,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if !authCfg.DevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "dev login is disabled", nil)
		}
		if !limiter.Allow() {
			authCfg.logger().WithField("user", input.Body.UserID).Warn("dev login rate limited")
			return nil, newAPIError(http.StatusTooManyRequests, "rate_limited", "too many login attempts", nil)
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := auth.Principal(strings.TrimSpace(input.Body.UserID), strings.TrimSpace(input.Body.Username), input.Body.Role)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		token, exp, err := SignToken(authCfg.JWTSecret, p, authCfg.ttl(), time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}}, nil
	})
}

func registerCycle(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-cr-cycle",
		Method:      http.MethodGet,
		Path:        "/cr-cycle",
		Summary:     "Active CR cycle of the engineer",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*cycleBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		state, err := e.Cycle(p)
		if err != nil {
			return nil, handleError(err)
		}
		return &cycleBody{Body: cycleResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-cr-cycle",
		Method:      http.MethodPut,
		Path:        "/cr-cycle",
		Summary:     "Open or update the CR cycle",
		Description: "A cycle with submitted works keeps its CR number and date; changed is false in that case. A zero, negative or fractional target discards the cycle.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CycleRequest `json:"body"`
	}) (*cycleBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		state, err := e.OpenCycle(ctx, p, input.Body.target(), input.Body.CRNumber, input.Body.CRDate)
		if err != nil {
			return nil, handleError(err)
		}
		return &cycleBody{Body: cycleResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-cr-cycle",
		Method:        http.MethodDelete,
		Path:          "/cr-cycle",
		Summary:       "Discard the CR cycle",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DiscardCycle(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerSession(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "end-session",
		Method:        http.MethodDelete,
		Path:          "/session",
		Summary:       "End the caller's session",
		Description:   "Drops locally held works and the CR cycle. Forwarded works are not affected.",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		e.EndSession(ctx, p)
		return nil, nil
	})
}

func registerBudget(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-budget",
		Method:      http.MethodGet,
		Path:        "/budget",
		Summary:     "Budget left for new works",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BudgetResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.Budget(p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BudgetResponse `json:"body"`
		}{Body: budgetResponse(view)}, nil
	})
}

func registerLocalWorks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-work",
		Method:        http.MethodPost,
		Path:          "/works",
		Summary:       "Submit a work to the engineer's local list",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body SubmitWorkRequest `json:"body"`
	}) (*workBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		draft, err := input.Body.toDraft()
		if err != nil {
			return nil, handleError(err)
		}
		item, err := e.Submit(ctx, p, draft)
		if err != nil {
			return nil, handleError(err)
		}
		return &workBody{Body: workResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-local-works",
		Method:      http.MethodGet,
		Path:        "/works/local",
		Summary:     "Works held locally until forwarded",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*workListBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Local(p)
		if err != nil {
			return nil, handleError(err)
		}
		return &workListBody{Body: workList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "discard-local-work",
		Method:        http.MethodDelete,
		Path:          "/works/local/{id}",
		Summary:       "Discard a local work",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Discard(ctx, p, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "forward-local-works",
		Method:      http.MethodPost,
		Path:        "/works/forward",
		Summary:     "Forward every local work to the Commissioner",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, _ *struct{}) (*workListBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Forward(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &workListBody{Body: workList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resubmit-work",
		Method:      http.MethodPost,
		Path:        "/works/{id}/resubmit",
		Summary:     "Correct a rejected work and send it back to the Commissioner",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ResubmitRequest `json:"body"`
	}) (*workBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.Resubmit(ctx, p, input.ID, input.Body.toCorrection())
		if err != nil {
			return nil, handleError(err)
		}
		return &workBody{Body: workResponse(item)}, nil
	})
}

func registerSharedWorks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-works",
		Method:      http.MethodGet,
		Path:        "/works",
		Summary:     "List shared works",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Section  string `query:"section"`
		CRNumber string `query:"crNumber"`
		Sector   string `query:"sector"`
	}) (*workListBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.List(p, engine.ListFilters{
			Status:   input.Status,
			Section:  input.Section,
			CRNumber: input.CRNumber,
			Sector:   input.Sector,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &workListBody{Body: workList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-work",
		Method:      http.MethodGet,
		Path:        "/works/{id}",
		Summary:     "Get a shared work with the actions open to the caller",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*workBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.Get(p, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := workResponse(item)
		for _, t := range workflow.Available(item, p.Role) {
			resp.Actions = append(resp.Actions, string(t.Action))
		}
		return &workBody{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "act-on-works",
		Method:      http.MethodPost,
		Path:        "/works/actions",
		Summary:     "Approve, reject, forward or resubmit selected works",
		Description: "The action applies to every id or to none of them.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body ActionRequest `json:"body"`
	}) (*workListBody, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		action, err := workflow.ParseAction(input.Body.Action)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "action"})
		}
		items, err := e.Act(ctx, p, action, input.Body.IDs, input.Body.Remarks)
		if err != nil {
			return nil, handleError(err)
		}
		return &workListBody{Body: workList(items)}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-by-cr",
		Method:      http.MethodGet,
		Path:        "/dashboard/by-cr",
		Summary:     "Dashboard view grouped by CR number",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		View string `query:"view" default:"all"`
	}) (*struct {
		Body []CRGroupResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := engine.ParseView(input.View)
		if err != nil {
			return nil, handleError(err)
		}
		groups, err := e.ByCR(p, view)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CRGroupResponse `json:"body"`
		}{Body: crGroups(groups)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard/{view}",
		Summary:     "One view of the caller's dashboard",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		View string `path:"view" enum:"pending,approved,forwarded,rejected,sent-back,all"`
	}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := engine.ParseView(input.View)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Dashboard(p, view)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Counts(p)
		if err != nil {
			return nil, handleError(err)
		}
		resp := DashboardResponse{View: string(view), Items: mapWorks(items), Counts: map[string]int{}}
		for v, n := range counts {
			resp.Counts[string(v)] = n
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: resp}, nil
	})
}
