package product

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"storefront-be/internal/transport"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
)

const fallbackCode = "PRODUCT_ERROR"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func listOptions(r *http.Request) ListOptions {
	q := r.URL.Query()
	sort := q.Get("sort")
	if sort == "" {
		sort = SortCreated
	}
	return ListOptions{
		Search:    q.Get("q"),
		Brand:     q.Get("brand"),
		Category:  q.Get("category"),
		MinPrice:  transport.ParseFloat(q.Get("min_price")),
		MaxPrice:  transport.ParseFloat(q.Get("max_price")),
		MinRating: transport.ParseFloat(q.Get("min_rating")),
		Sort:      sort,
		Page:      transport.ParseInt(q.Get("page"), DefaultPage, 1, math.MaxInt),
		Limit:     transport.ParseInt(q.Get("limit"), DefaultLimit, 1, MaxLimit),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context(), listOptions(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, products)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Search(r.Context(), listOptions(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, p)
}

// Create is the admin POST; the body carries the id.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.ID = strings.TrimSpace(in.ID)

	if err := validate(in, true); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.svc.Upsert(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusCreated, p)
}

// Update is the admin PUT; the path id wins over any id in the body.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.ID = mux.Vars(r)["id"]

	if err := validate(in, false); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.svc.Upsert(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, map[string]string{"id": id})
}

func validate(in Input, create bool) error {
	var errs *multierror.Error
	if in.ID == "" {
		errs = multierror.Append(errs, errors.New("id is required"))
	}
	if create && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		errs = multierror.Append(errs, errors.New("name is required"))
	}
	if in.Price != nil && in.Price.IsNegative() {
		errs = multierror.Append(errs, errors.New("price must not be negative"))
	}
	if in.Discount != nil && (*in.Discount < 0 || *in.Discount > 100) {
		errs = multierror.Append(errs, errors.New("discount must be between 0 and 100"))
	}
	if in.Rating != nil && (*in.Rating < 0 || *in.Rating > 5) {
		errs = multierror.Append(errs, errors.New("rating must be between 0 and 5"))
	}
	if in.ReviewCount != nil && *in.ReviewCount < 0 {
		errs = multierror.Append(errs, errors.New("review_count must not be negative"))
	}
	if in.SoldCount != nil && *in.SoldCount < 0 {
		errs = multierror.Append(errs, errors.New("sold_count must not be negative"))
	}
	return transport.FieldErrors(errs)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		err = transport.NotFound("product not found")
	case errors.Is(err, ErrSearchRequired):
		err = transport.Validation("query parameter 'q' is required for search")
	}
	transport.WriteError(w, r, err, fallbackCode)
}
