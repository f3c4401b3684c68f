package httpapi

import (
	"net/http"
	"strings"

	"newsroom.local/gee"
	"newsroom.local/internal/app/news"
	newscache "newsroom.local/internal/app/news/cache"

	"github.com/google/uuid"
)

func NewCategoryByIDHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := pathID(ctx)
		if !ok {
			return
		}
		c, err := d.Categories.FindByID(ctx.Req.Context(), id)
		if err != nil {
			writeError(ctx, err, "load category")
			return
		}
		ctx.Success(http.StatusOK, "Category detail", toCategoryDTO(c))
	}
}

type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitnil,max=1000"`
	Status      string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

func NewCreateCategoryHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		var req CreateCategoryRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			ctx.AbortWithErrors(http.StatusUnprocessableEntity, "Validation error", gee.FieldErrors{"name": {"is required"}})
			return
		}
		status := req.Status
		if status == "" {
			status = news.CategoryActive
		}
		c, err := d.Categories.Create(ctx.Req.Context(), news.Category{
			UUID:        uuid.NewString(),
			UserID:      &a.ID,
			Name:        name,
			Slug:        news.Slugify(name),
			Description: req.Description,
			Status:      status,
		})
		if err != nil {
			writeError(ctx, err, "create category")
			return
		}
		d.runEffects(ctx.Req.Context(), d.invalidate(newscache.CategoryTargets()))
		ctx.Success(http.StatusCreated, "Category created", toCategoryDTO(c))
	}
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,max=1000"`
	Status      *string `json:"status" validate:"omitnil,oneof=active inactive"`
}

func NewUpdateCategoryHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx)
		if !ok {
			return
		}
		var req UpdateCategoryRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		reqCtx := ctx.Req.Context()

		existing, err := d.Categories.FindByID(reqCtx, id)
		if err != nil {
			writeError(ctx, err, "load category")
			return
		}
		if !a.canModify(existing.UserID) {
			ctx.AbortWithError(http.StatusForbidden, "Forbidden")
			return
		}

		var patch news.CategoryPatch
		if name := trimmedOrNil(req.Name); name != nil && *name != "" {
			slug := news.Slugify(*name)
			patch.Name, patch.Slug = name, &slug
		}
		patch.Description = req.Description
		patch.Status = req.Status

		c, err := d.Categories.Update(reqCtx, id, patch)
		if err != nil {
			writeError(ctx, err, "update category")
			return
		}
		d.runEffects(reqCtx, d.invalidate(newscache.CategoryTargets()))
		ctx.Success(http.StatusOK, "Category updated", toCategoryDTO(c))
	}
}

func NewDeleteCategoryHandler(d *Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		a, ok := mustGetActor(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx)
		if !ok {
			return
		}
		reqCtx := ctx.Req.Context()

		existing, err := d.Categories.FindByID(reqCtx, id)
		if err != nil {
			writeError(ctx, err, "load category")
			return
		}
		if !a.canModify(existing.UserID) {
			ctx.AbortWithError(http.StatusForbidden, "Forbidden")
			return
		}
		if err := d.Categories.Delete(reqCtx, id); err != nil {
			writeError(ctx, err, "delete category")
			return
		}
		d.runEffects(reqCtx, d.invalidate(newscache.CategoryTargets()))
		ctx.Success(http.StatusOK, "Category deleted", nil)
	}
}
