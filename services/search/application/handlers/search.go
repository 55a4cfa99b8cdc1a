package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ghuser/dkn/pkg/app"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
)

const maxQueryLength = 100

// Result is one row of the directory listing.
type Result struct {
	Username string
	Email    string
	Role     string
}

// ResultsPage is the data behind search/results.html.
type ResultsPage struct {
	Query    string
	Total    int
	Results  []Result
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

func (ResultsPage) PageTitle() string { return "Search" }

// SearchHandler serves GET /search?q=&page=.
type SearchHandler struct {
	app   *app.Application
	users *appsvcs.UserService
}

func NewSearchHandler(a *app.Application, users *appsvcs.UserService) *SearchHandler {
	return &SearchHandler{app: a, users: users}
}

// Execute lists the users whose username or email contains q, ItemsPerPage
// at a time. A missing or malformed page means the first page.
func (h *SearchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if r := []rune(q); len(r) > maxQueryLength {
		q = string(r[:maxQueryLength])
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	res, err := h.users.Search(r.Context(), q, page, h.app.Config.ItemsPerPage)
	if err != nil {
		h.app.HandleError(w, r, err)
		return
	}

	out := ResultsPage{
		Query:    q,
		Total:    res.Total,
		Results:  make([]Result, 0, len(res.Users)),
		HasPrev:  res.HasPrev(),
		HasNext:  res.HasNext(),
		PrevPage: res.Page - 1,
		NextPage: res.Page + 1,
	}
	for _, u := range res.Users {
		out.Results = append(out.Results, Result{Username: u.Username.String(), Email: u.Email, Role: u.Role.String()})
	}
	h.app.Render(w, r, http.StatusOK, "search/results.html", out)
}
