package repository

import (
	"encoding/json"
	"fmt"

	"fluxia/internal/domain"
)

func marshalCategories(cats []domain.Category) ([]byte, error) {
	if cats == nil {
		cats = []domain.Category{}
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}
	return b, nil
}

func unmarshalCategories(raw []byte) ([]domain.Category, error) {
	if len(raw) == 0 {
		return []domain.Category{}, nil
	}
	var cats []domain.Category
	if err := json.Unmarshal(raw, &cats); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return cats, nil
}
