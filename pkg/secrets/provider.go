package secrets

import "context"

// Provider fetches named secrets as flat key/value maps.
type Provider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// StaticProvider serves secrets from memory. Used by tenderctl and tests.
type StaticProvider map[string]map[string]string

func (p StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	if s, ok := p[name]; ok {
		return s, nil
	}
	return nil, &NotFoundError{Name: name}
}

// NotFoundError reports a secret name the provider does not know.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return "secret not found: " + e.Name }
