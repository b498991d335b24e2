package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/query"
	"github.com/spec-kit/tour-booking-service/internal/repository"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

const payloadDefaultsKey = "payload_defaults"

// SetPayloadDefault lets pre-hook middleware stamp a field the payload may
// omit (e.g. a review's tour and author). Values already present in the
// request body win.
func SetPayloadDefault(c *fiber.Ctx, field string, value any) {
	defaults, _ := c.Locals(payloadDefaultsKey).(map[string]any)
	if defaults == nil {
		defaults = make(map[string]any)
	}
	defaults[field] = value
	c.Locals(payloadDefaultsKey, defaults)
}

// Hook runs after a factory operation succeeds, with the affected record.
type Hook[T any] func(ctx context.Context, record *T) error

// ResourceConfig parameterizes the factory for one resource type. The
// factory encodes no resource-specific rules; everything specific arrives
// through this configuration or through pre-hook middleware.
type ResourceConfig[T any] struct {
	Name  string
	Store repository.Store[T]

	// ParentParam/ParentField enable nested listings: when the route param
	// is present its value is injected as an ancestor filter before the
	// query pipeline runs.
	ParentParam string
	ParentField string

	// Explicit post-operation hooks, enumerated per operation.
	AfterCreate Hook[T]
	AfterUpdate Hook[T]
	AfterDelete Hook[T]
}

// Resource bundles the five canonical operations for one resource type.
type Resource[T any] struct {
	cfg ResourceConfig[T]
}

// NewResource constructs the operation set.
func NewResource[T any](cfg ResourceConfig[T]) *Resource[T] {
	return &Resource[T]{cfg: cfg}
}

// GetOption adjusts a single-record retrieval.
type GetOption[T any] func(*getSettings[T])

type getSettings[T any] struct {
	populate Hook[T]
}

// WithPopulate join-expands referenced resources on retrieval. Opt-in per
// route; plain retrievals skip the extra query.
func WithPopulate[T any](populate Hook[T]) GetOption[T] {
	return func(s *getSettings[T]) {
		s.populate = populate
	}
}

// Create handles POST /<resource>.
func (r *Resource[T]) Create(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return err
	}

	record, err := r.cfg.Store.Create(c.Context(), payload)
	if err != nil {
		return err
	}
	if r.cfg.AfterCreate != nil {
		if err := r.cfg.AfterCreate(c.Context(), record); err != nil {
			return err
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{r.cfg.Name: record},
	})
}

// GetOne handles GET /<resource>/:id.
func (r *Resource[T]) GetOne(opts ...GetOption[T]) fiber.Handler {
	var settings getSettings[T]
	for _, opt := range opts {
		opt(&settings)
	}

	return func(c *fiber.Ctx) error {
		record, err := r.cfg.Store.FindByID(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		if settings.populate != nil {
			if err := settings.populate(c.Context(), record); err != nil {
				return err
			}
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   fiber.Map{r.cfg.Name: record},
		})
	}
}

// GetAll handles GET /<resource> and the nested GET /<parent>/:id/<resource>.
// An empty result is success, never not-found.
func (r *Resource[T]) GetAll(c *fiber.Ctx) error {
	params := make(map[string][]string, len(c.Queries()))
	for key, value := range c.Queries() {
		params[key] = append(params[key], value)
	}

	features := query.New(params)
	if r.cfg.ParentParam != "" {
		if parentID := c.Params(r.cfg.ParentParam); parentID != "" {
			features.WithBaseFilter(query.Condition{
				Field: r.cfg.ParentField,
				Op:    query.OpEq,
				Value: parentID,
			})
		}
	}

	spec := features.Filter().SelectFields().Sort().Paginate().Spec()
	records, err := r.cfg.Store.Find(c.Context(), spec)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"results": len(records),
		"data":    fiber.Map{r.cfg.Name + "s": records},
	})
}

// Update handles PATCH /<resource>/:id with a partial payload merge.
func (r *Resource[T]) Update(c *fiber.Ctx) error {
	payload, err := parsePayload(c)
	if err != nil {
		return err
	}

	record, err := r.cfg.Store.FindByIDAndUpdate(c.Context(), c.Params("id"), payload)
	if err != nil {
		return err
	}
	if r.cfg.AfterUpdate != nil {
		if err := r.cfg.AfterUpdate(c.Context(), record); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{r.cfg.Name: record},
	})
}

// Delete handles DELETE /<resource>/:id, answering 204 without a body.
func (r *Resource[T]) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	// The delete hook needs the record, so fetch it before it is gone.
	var deleted *T
	if r.cfg.AfterDelete != nil {
		record, err := r.cfg.Store.FindByID(c.Context(), id)
		if err != nil {
			return err
		}
		deleted = record
	}

	if err := r.cfg.Store.FindByIDAndDelete(c.Context(), id); err != nil {
		return err
	}
	if r.cfg.AfterDelete != nil {
		if err := r.cfg.AfterDelete(c.Context(), deleted); err != nil {
			return err
		}
	}

	return c.SendStatus(http.StatusNoContent)
}

// parsePayload decodes the JSON body into a field map and merges the
// defaults stamped by pre-hook middleware for fields the body omits.
func parsePayload(c *fiber.Ctx) (map[string]any, error) {
	payload := make(map[string]any)
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, apperrors.NewValidationError("invalid payload", nil)
		}
	}

	if defaults, ok := c.Locals(payloadDefaultsKey).(map[string]any); ok {
		for field, value := range defaults {
			if _, present := payload[field]; !present {
				payload[field] = value
			}
		}
	}
	return payload, nil
}
