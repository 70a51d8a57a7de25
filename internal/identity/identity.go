// Package identity resolves property display names and the active inspector,
// caching lookups so record creation stays fast in the field.
package identity

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.IdentityResolver = (*CachedResolver)(nil)

// CachedResolver wraps another resolver with an in-memory TTL cache. Lookups
// hit the delegate at most once per TTL window; resolution failures are not
// cached.
type CachedResolver struct {
	delegate fieldsync.IdentityResolver
	cache    *cache.Cache
}

// NewCachedResolver creates a caching resolver. Entries expire after ttl.
func NewCachedResolver(delegate fieldsync.IdentityResolver, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedResolver{
		delegate: delegate,
		cache:    cache.New(ttl, 2*ttl),
	}
}

// PropertyName returns the display name for a property.
func (r *CachedResolver) PropertyName(ctx context.Context, propertyID string) (string, error) {
	key := "property:" + propertyID
	if v, ok := r.cache.Get(key); ok {
		return v.(string), nil
	}
	name, err := r.delegate.PropertyName(ctx, propertyID)
	if err != nil {
		return "", err
	}
	r.cache.SetDefault(key, name)
	return name, nil
}

// InspectorID returns the identifier of the active inspector.
func (r *CachedResolver) InspectorID(ctx context.Context) (string, error) {
	const key = "inspector"
	if v, ok := r.cache.Get(key); ok {
		return v.(string), nil
	}
	id, err := r.delegate.InspectorID(ctx)
	if err != nil {
		return "", err
	}
	r.cache.SetDefault(key, id)
	return id, nil
}

// StaticResolver resolves from fixed values, for deployments where the device
// is provisioned with its inspector identity up front.
type StaticResolver struct {
	Inspector  string
	Properties map[string]string
}

// Compile-time interface check
var _ fieldsync.IdentityResolver = (*StaticResolver)(nil)

// PropertyName returns the provisioned display name, falling back to the id.
func (r *StaticResolver) PropertyName(ctx context.Context, propertyID string) (string, error) {
	if name, ok := r.Properties[propertyID]; ok {
		return name, nil
	}
	return propertyID, nil
}

// InspectorID returns the provisioned inspector identifier.
func (r *StaticResolver) InspectorID(ctx context.Context) (string, error) {
	return r.Inspector, nil
}
