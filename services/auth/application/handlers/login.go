package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/pkg/auth"
	pkgvalidator "github.com/ghuser/dkn/pkg/validator"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
	authdomain "github.com/ghuser/dkn/services/auth/domain"
)

const loginPage = "auth/login.html"

// LoginForm is the body of POST /auth/login.
type LoginForm struct {
	Username string `schema:"username" validate:"required,max=80"`
	Password string `schema:"password" validate:"required,max=72"`
	Remember bool   `schema:"remember"`
	Next     string `schema:"next"`
}

// LoginPage is the data behind auth/login.html.
type LoginPage struct {
	Username string
	Next     string
	Remember bool
	Errors   map[string]string
}

func (LoginPage) PageTitle() string { return "Log in" }

// LoginHandler serves the login form and the logout action.
type LoginHandler struct {
	app *app.Application
	svc *appsvcs.Services
}

func NewLoginHandler(a *app.Application, svc *appsvcs.Services) *LoginHandler {
	return &LoginHandler{app: a, svc: svc}
}

// Show renders the login form. A visitor who is already logged in goes
// straight to ?next= or the home page.
func (h *LoginHandler) Show(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if auth.UserFromCtx(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, auth.SafeNext(next, h.home()), http.StatusSeeOther)
		return
	}
	h.app.Render(w, r, http.StatusOK, loginPage, LoginPage{Next: next})
}

// Submit checks the credentials, starts the session and redirects to the
// page that asked for a login.
func (h *LoginHandler) Submit(w http.ResponseWriter, r *http.Request) {
	form, err := pkgvalidator.DecodeForm[LoginForm](r)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			h.app.Render(w, r, http.StatusUnprocessableEntity, loginPage, LoginPage{
				Username: form.Username,
				Next:     form.Next,
				Remember: form.Remember,
				Errors:   pkgvalidator.FormatValidationErrors(err),
			})
			return
		}
		h.app.HandleError(w, r, err)
		return
	}

	user, err := h.svc.Users.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) || errors.Is(err, authdomain.ErrInactiveUser) {
			h.app.Logger.InfoContext(r.Context(), "login rejected", "username", form.Username, "reason", err.Error())
			h.flash(w, r, "danger", "Invalid username or password.")
			h.app.Render(w, r, http.StatusUnauthorized, loginPage, LoginPage{
				Username: form.Username,
				Next:     form.Next,
				Remember: form.Remember,
			})
			return
		}
		h.app.HandleError(w, r, err)
		return
	}

	if err := h.app.Login.LoginUser(w, r, appsvcs.Identity(user), form.Remember); err != nil {
		h.app.ServerError(w, r, err)
		return
	}
	h.app.Logger.InfoContext(r.Context(), "user logged in", "user_id", user.ID, "remember", form.Remember)
	h.flash(w, r, "success", "Welcome back, "+user.Username.String()+".")
	http.Redirect(w, r, auth.SafeNext(form.Next, h.home()), http.StatusSeeOther)
}

// Logout ends the session and returns to the login form.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Login.LogoutUser(w, r); err != nil {
		h.app.ServerError(w, r, err)
		return
	}
	h.flash(w, r, "info", "You have been logged out.")
	http.Redirect(w, r, h.app.URLFor("auth.login"), http.StatusSeeOther)
}

func (h *LoginHandler) flash(w http.ResponseWriter, r *http.Request, category, msg string) {
	if err := h.app.Login.AddFlash(w, r, category, msg); err != nil {
		h.app.Logger.WarnContext(r.Context(), "failed to add flash", "error", err)
	}
}

func (h *LoginHandler) home() string {
	if home := h.app.URLFor("main.index"); home != "" {
		return home
	}
	return "/"
}
