package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/Salle79/Litium/pkg/errors"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
)

const (
	keyPrefix  = "fielddef:"
	typeField  = "type"
	namePrefix = "name:"
)

// FieldDefinitionRepository implements fielddef.Store using one Redis hash
// per field: the value type under "type" and one "name:<culture>" entry per
// localized name.
type FieldDefinitionRepository struct {
	client redis.UniversalClient
}

var _ fielddef.Store = (*FieldDefinitionRepository)(nil)

// NewFieldDefinitionRepository creates a new Redis-backed field-definition repository.
func NewFieldDefinitionRepository(client redis.UniversalClient) *FieldDefinitionRepository {
	return &FieldDefinitionRepository{client: client}
}

// Get retrieves a field definition by id.
func (r *FieldDefinitionRepository) Get(ctx context.Context, id string) (*fielddef.Definition, error) {
	values, err := r.client.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall field definition: %w", err)
	}
	if len(values) == 0 {
		return nil, apperrors.NotFound("field definition", id)
	}

	def := &fielddef.Definition{
		ID:    id,
		Type:  fielddef.FieldType(values[typeField]),
		Names: make(map[string]string),
	}
	if def.Type == "" {
		def.Type = fielddef.TypeText
	}
	for k, v := range values {
		if culture, ok := strings.CutPrefix(k, namePrefix); ok {
			def.Names[culture] = v
		}
	}
	return def, nil
}

// Put replaces a field definition.
func (r *FieldDefinitionRepository) Put(ctx context.Context, def *fielddef.Definition) error {
	key := keyPrefix + def.ID

	fields := make(map[string]any, len(def.Names)+1)
	fields[typeField] = string(def.Type)
	for culture, name := range def.Names {
		fields[namePrefix+culture] = name
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put field definition: %w", err)
	}
	return nil
}

// Delete removes a field definition. Deleting an unknown id is not an error.
func (r *FieldDefinitionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del field definition: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *FieldDefinitionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
