// Package handlers renders the role-gated landing page of each workspace.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ghuser/dkn/pkg/app"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
	"github.com/ghuser/dkn/services/auth/domain/models"
)

const sectionTemplate = "section/index.html"

// SectionPage is the data behind section/index.html.
type SectionPage struct {
	Title   string
	Summary string
	Items   []string
}

func (p SectionPage) PageTitle() string { return p.Title }

// Builder produces a section's page for the current request.
type Builder func(ctx context.Context) (SectionPage, error)

// Section renders the page produced by build.
func Section(a *app.Application, build Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := build(r.Context())
		if err != nil {
			a.HandleError(w, r, err)
			return
		}
		a.Render(w, r, http.StatusOK, sectionTemplate, page)
	}
}

// Consultant lists the contribution limits that apply to every asset.
func Consultant(a *app.Application) Builder {
	cfg := a.Config
	return func(context.Context) (SectionPage, error) {
		return SectionPage{
			Title:   "Consultant Workspace",
			Summary: "Contribute knowledge assets and find the experts behind them.",
			Items: []string{
				fmt.Sprintf("Uploads up to %d MB", cfg.MaxContentLength/(1024*1024)),
				"Accepted file types: " + strings.Join(cfg.Extensions(), ", "),
				fmt.Sprintf("Up to %d tags per asset", cfg.MaxTagsPerAsset),
				fmt.Sprintf("Up to %d experts per asset", cfg.MaxExpertsPerAsset),
			},
		}, nil
	}
}

// Champion shows the curation thresholds champions work with.
func Champion(a *app.Application) Builder {
	cfg := a.Config
	return func(context.Context) (SectionPage, error) {
		return SectionPage{
			Title:   "Champion Workspace",
			Summary: "Review contributions and keep the catalogue free of duplicates.",
			Items: []string{
				fmt.Sprintf("Duplicate similarity threshold: %.2f", cfg.SimilarityThreshold),
				fmt.Sprintf("Review queue page size: %d", cfg.ItemsPerPage),
			},
		}, nil
	}
}

// Governance summarises active accounts per role.
func Governance(users *appsvcs.UserService) Builder {
	return func(ctx context.Context) (SectionPage, error) {
		counts, err := users.RoleCounts(ctx)
		if err != nil {
			return SectionPage{}, err
		}
		items := make([]string, 0, len(models.Roles))
		for _, role := range models.Roles {
			items = append(items, fmt.Sprintf("%s: %d active", role, counts[role]))
		}
		return SectionPage{
			Title:   "Governance",
			Summary: "Oversee access across the network.",
			Items:   items,
		}, nil
	}
}

// Admin lists the first page of accounts.
func Admin(a *app.Application, users *appsvcs.UserService) Builder {
	perPage := a.Config.ItemsPerPage
	return func(ctx context.Context) (SectionPage, error) {
		page, err := users.Search(ctx, "", 1, perPage)
		if err != nil {
			return SectionPage{}, err
		}
		items := make([]string, 0, len(page.Users))
		for _, u := range page.Users {
			state := ""
			if !u.IsActive {
				state = ", disabled"
			}
			items = append(items, fmt.Sprintf("%s <%s> (%s%s)", u.Username, u.Email, u.Role, state))
		}
		return SectionPage{
			Title:   "Administration",
			Summary: fmt.Sprintf("%d accounts in total.", page.Total),
			Items:   items,
		}, nil
	}
}
