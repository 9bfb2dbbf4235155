package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealsmith/backend/internal/domain"
	"github.com/mealsmith/backend/internal/infrastructure/cache"
)

// stubClient serves a canned search response or error.
type stubClient struct {
	resp  *domain.FoodDBSearchResponse
	err   error
	calls int
}

func (s *stubClient) SearchFoods(ctx context.Context, query string) (*domain.FoodDBSearchResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestHotpathLookup(t *testing.T) {
	t.Run("exact key", func(t *testing.T) {
		rec := hotpathLookup("chicken breast")
		if rec == nil {
			t.Fatal("hotpathLookup() = nil, want record")
		}
		if rec.Source != domain.SourceHotpath {
			t.Errorf("Source = %q, want hotpath", rec.Source)
		}
		if rec.Confidence != 1.0 {
			t.Errorf("Confidence = %v, want 1.0", rec.Confidence)
		}
		if rec.Calories != 120 {
			t.Errorf("Calories = %v, want 120", rec.Calories)
		}
	})

	t.Run("substring match", func(t *testing.T) {
		rec := hotpathLookup("grilled chicken breast with herbs")
		if rec == nil {
			t.Fatal("hotpathLookup() = nil, want substring match")
		}
		if rec.Key != "grilled chicken breast with herbs" {
			t.Errorf("Key = %q, want the queried key", rec.Key)
		}
	})

	t.Run("miss", func(t *testing.T) {
		if rec := hotpathLookup("dragon fruit"); rec != nil {
			t.Errorf("hotpathLookup() = %+v, want nil", rec)
		}
	})

	t.Run("longest table name wins", func(t *testing.T) {
		// "brown rice cooked" contains both "rice" and "brown rice"; the
		// more specific entry must win on every call.
		for i := 0; i < 50; i++ {
			rec := hotpathLookup("brown rice cooked")
			if rec == nil {
				t.Fatal("hotpathLookup() = nil, want record")
			}
			if rec.Calories != 362 {
				t.Fatalf("call %d: Calories = %v, want 362 (brown rice)", i, rec.Calories)
			}
		}
	})
}

func TestFallbackEstimate(t *testing.T) {
	tests := []struct {
		key          string
		wantCalories float64
	}{
		{"kangaroo steak", 180},  // meat category
		{"teff flour", 350},      // grain category
		{"dragon fruit", 60},     // fruit category
		{"mystery ingredient", 150}, // catch-all
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rec := fallbackEstimate(tt.key)
			if rec == nil {
				t.Fatal("fallbackEstimate() = nil, want record")
			}
			if rec.Calories != tt.wantCalories {
				t.Errorf("Calories = %v, want %v", rec.Calories, tt.wantCalories)
			}
			if rec.Source != domain.SourceFallback {
				t.Errorf("Source = %q, want fallback", rec.Source)
			}
			if rec.Confidence != fallbackConfidence {
				t.Errorf("Confidence = %v, want %v", rec.Confidence, fallbackConfidence)
			}
		})
	}
}

func TestMapToRecord(t *testing.T) {
	food := &domain.FoodDBFood{
		ID:          42,
		Description: "Rice, white, long-grain, raw",
		Nutrients: []domain.FoodDBNutrient{
			{NutrientID: NutrientIDEnergy, Value: 365},
			{NutrientID: NutrientIDProtein, Value: 7.1},
			{NutrientID: NutrientIDTotalFat, Value: 0.7},
			{NutrientID: NutrientIDCarbohydrate, Value: 80},
			{NutrientID: 9999, Value: 12}, // unrelated nutrient ignored
		},
	}

	rec := mapToRecord("white rice", food, 87.5)

	if rec.Key != "white rice" {
		t.Errorf("Key = %q, want white rice", rec.Key)
	}
	if rec.Calories != 365 || rec.Protein != 7.1 || rec.Fat != 0.7 || rec.Carbs != 80 {
		t.Errorf("macros = %+v, want mapped nutrient values", rec)
	}
	if rec.Source != domain.SourceCanonical {
		t.Errorf("Source = %q, want canonical", rec.Source)
	}
	if rec.Confidence != 87.5 {
		t.Errorf("Confidence = %v, want match score", rec.Confidence)
	}
}

func TestService_Lookup_Tiers(t *testing.T) {
	ctx := context.Background()

	t.Run("hotpath wins without touching the client", func(t *testing.T) {
		client := &stubClient{err: errors.New("must not be called")}
		svc := NewService(cache.NewMemoryCache(), client, nil, ServiceConfig{})

		rec, err := svc.Lookup(ctx, "chicken breast")
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil", err)
		}
		if rec.Source != domain.SourceHotpath {
			t.Errorf("Source = %q, want hotpath", rec.Source)
		}
		if client.calls != 0 {
			t.Errorf("client calls = %d, want 0", client.calls)
		}
	})

	t.Run("canonical match is cached", func(t *testing.T) {
		client := &stubClient{resp: &domain.FoodDBSearchResponse{
			Foods: []domain.FoodDBFood{{
				ID:          7,
				Description: "Seitan, wheat gluten, raw",
				Nutrients: []domain.FoodDBNutrient{
					{NutrientID: NutrientIDEnergy, Value: 370},
					{NutrientID: NutrientIDProtein, Value: 75},
				},
			}},
		}}
		svc := NewService(cache.NewMemoryCache(), client, nil, ServiceConfig{CacheTTL: time.Hour})

		first, err := svc.Lookup(ctx, "seitan wheat gluten")
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil", err)
		}
		if first.Source != domain.SourceCanonical {
			t.Fatalf("Source = %q, want canonical", first.Source)
		}

		second, err := svc.Lookup(ctx, "seitan wheat gluten")
		if err != nil {
			t.Fatalf("second Lookup() error = %v, want nil", err)
		}
		if second.Calories != first.Calories {
			t.Errorf("cached Calories = %v, want %v", second.Calories, first.Calories)
		}
		if client.calls != 1 {
			t.Errorf("client calls = %d, want 1 (second hit served from cache)", client.calls)
		}
	})

	t.Run("client failure falls back to category estimate", func(t *testing.T) {
		client := &stubClient{err: domain.ErrFoodDBFailure}
		svc := NewService(cache.NewMemoryCache(), client, nil, ServiceConfig{})

		rec, err := svc.Lookup(ctx, "kangaroo steak")
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil", err)
		}
		if rec.Source != domain.SourceFallback {
			t.Errorf("Source = %q, want fallback", rec.Source)
		}
	})

	t.Run("low-confidence match is discarded for the estimate", func(t *testing.T) {
		client := &stubClient{resp: &domain.FoodDBSearchResponse{
			Foods: []domain.FoodDBFood{{ID: 1, Description: "Gelatin desserts, dry mix"}},
		}}
		svc := NewService(cache.NewMemoryCache(), client, nil, ServiceConfig{MinConfidenceThreshold: 40})

		rec, err := svc.Lookup(ctx, "kangaroo steak")
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil", err)
		}
		if rec.Source != domain.SourceFallback {
			t.Errorf("Source = %q, want fallback (wrong food beats no food, not vice versa)", rec.Source)
		}
	})

	t.Run("nil client skips the canonical tier", func(t *testing.T) {
		svc := NewService(cache.NewMemoryCache(), nil, nil, ServiceConfig{})

		rec, err := svc.Lookup(ctx, "kangaroo steak")
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil", err)
		}
		if rec.Source != domain.SourceFallback {
			t.Errorf("Source = %q, want fallback", rec.Source)
		}
	})

	t.Run("empty key is invalid", func(t *testing.T) {
		svc := NewService(nil, nil, nil, ServiceConfig{})

		if _, err := svc.Lookup(ctx, ""); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}
