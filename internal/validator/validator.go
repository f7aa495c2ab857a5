// Package validator resolves a (tenant, dataCore, flowType, eventType)
// natural-name tuple to stable identifiers using a three-tier lookup:
// in-process resolution cache, shared Redis cache, then the resource store.
package validator

import (
	"context"
	"errors"

	"github.com/flowgate-systems/flowgate/internal/cache"
	"github.com/flowgate-systems/flowgate/internal/logging"
	"github.com/flowgate-systems/flowgate/internal/metrics"
	"github.com/flowgate-systems/flowgate/internal/models"
	"github.com/flowgate-systems/flowgate/internal/repository"
)

// ErrNotFound signals that the resource tuple does not resolve at any tier.
// It is an expected outcome and is never cached as a negative result, so a
// newly created resource is resolvable on the next request.
var ErrNotFound = errors.New("resource path not found")

// RemoteCache is the distributed-cache surface the validator consumes.
type RemoteCache interface {
	GetValidation(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string) (*models.ResourceIDs, bool, error)
	SetValidation(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string, ids *models.ResourceIDs) error
}

// Validator orchestrates the tiered lookup. Cache-tier failures degrade to
// the next tier; only store failures propagate to the caller.
type Validator struct {
	local  *cache.ResolutionCache
	remote RemoteCache
	repo   repository.Repository
	logger *logging.Logger
}

func New(local *cache.ResolutionCache, remote RemoteCache, repo repository.Repository, logger *logging.Logger) *Validator {
	return &Validator{
		local:  local,
		remote: remote,
		repo:   repo,
		logger: logger,
	}
}

// Validate resolves the tuple or returns ErrNotFound. Any other error means
// the store read path failed.
func (v *Validator) Validate(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string) (*models.ResourceIDs, error) {
	key := cache.Key(tenant, dataCoreName, flowTypeName, eventTypeName)

	loaderRan := false
	ids, err := v.local.GetOrLoad(ctx, key, func(ctx context.Context) (*models.ResourceIDs, error) {
		loaderRan = true
		return v.resolve(ctx, tenant, dataCoreName, flowTypeName, eventTypeName)
	})
	if err != nil {
		return nil, err
	}
	if !loaderRan && ids != nil {
		metrics.ValidationCacheHits.WithLabelValues("local").Inc()
	}
	if ids == nil {
		metrics.ValidationNotFound.Inc()
		return nil, ErrNotFound
	}
	return ids, nil
}

// resolve is the loader behind the local cache: Redis first, store second.
// A nil result means the tuple definitively does not exist.
func (v *Validator) resolve(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string) (*models.ResourceIDs, error) {
	if v.remote != nil {
		ids, ok, err := v.remote.GetValidation(ctx, tenant, dataCoreName, flowTypeName, eventTypeName)
		if err != nil {
			// Cache-tier failure: fall through to the store.
			v.logger.WarnContext(ctx, "distributed cache read failed, falling back to store", logging.Error(err))
		} else if ok {
			metrics.ValidationCacheHits.WithLabelValues("distributed").Inc()
			return ids, nil
		}
	}

	ids, err := v.lookupStore(ctx, tenant, dataCoreName, flowTypeName, eventTypeName)
	if err != nil || ids == nil {
		return ids, err
	}
	metrics.ValidationCacheMisses.Inc()

	if v.remote != nil {
		// Best-effort write-back; never fails the lookup.
		if err := v.remote.SetValidation(ctx, tenant, dataCoreName, flowTypeName, eventTypeName, ids); err != nil {
			v.logger.WarnContext(ctx, "distributed cache write failed", logging.Error(err))
		}
	}

	return ids, nil
}

// lookupStore walks the hierarchy top-down and short-circuits to not-found
// as soon as any level is missing.
func (v *Validator) lookupStore(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string) (*models.ResourceIDs, error) {
	dc, err := v.repo.DataCoreByName(ctx, tenant, dataCoreName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ft, err := v.repo.FlowTypeByName(ctx, dc.ID, flowTypeName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	et, err := v.repo.EventTypeByName(ctx, ft.ID, eventTypeName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &models.ResourceIDs{
		DataCoreID:  dc.ID,
		FlowTypeID:  ft.ID,
		EventTypeID: et.ID,
	}, nil
}
