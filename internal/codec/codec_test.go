package codec

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"

	"github.com/checkbill/checkbill/internal/models"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ledger *models.Ledger
	}{
		{
			name:   "empty ledger",
			ledger: &models.Ledger{},
		},
		{
			name: "typical ledger",
			ledger: &models.Ledger{
				Persons: []models.Person{
					{ID: "p1", Name: "Alice"},
					{ID: "p2", Name: "Bob"},
				},
				Items: []models.Item{
					{ID: "i1", Name: "Dinner", BaseAmount: 42.50, SharedBy: []string{"p1", "p2"}, PaidBy: "p1", VATEnabled: true},
				},
			},
		},
		{
			name: "unicode names survive the byte-safe transform",
			ledger: &models.Ledger{
				Persons: []models.Person{
					{ID: "p1", Name: "José"},
					{ID: "p2", Name: "こんにちは"},
				},
				Items: []models.Item{
					{ID: "i1", Name: "ข้าวผัด 🍚", BaseAmount: 120, SharedBy: []string{"p1", "p2"}, PaidBy: "p2", ServiceChargeEnabled: true},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.ledger)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if !reflect.DeepEqual(decoded.Persons, tt.ledger.Persons) {
				t.Errorf("persons round-trip mismatch: got %v, want %v", decoded.Persons, tt.ledger.Persons)
			}
			if !reflect.DeepEqual(decoded.Items, tt.ledger.Items) {
				t.Errorf("items round-trip mismatch: got %v, want %v", decoded.Items, tt.ledger.Items)
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	ledger := &models.Ledger{
		Persons: []models.Person{{ID: "p1", Name: "Alice"}},
		Items:   []models.Item{{ID: "i1", Name: "Tea", BaseAmount: 3.50, SharedBy: []string{"p1"}, PaidBy: "p1"}},
	}
	first, err := Encode(ledger)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Encode(ledger)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if again != first {
			t.Fatalf("encoding is not deterministic: %q vs %q", again, first)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := Encode(&models.Ledger{
		Persons: []models.Person{{ID: "p1", Name: "Alice"}},
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tests := []struct {
		name string
		data string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"truncated payload", valid[:len(valid)-5]},
		{"base64 of junk", base64.URLEncoding.EncodeToString([]byte("{not json"))},
		{"future version", base64.URLEncoding.EncodeToString([]byte(`{"v":99,"persons":[],"items":[]}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if err == nil {
				t.Fatal("expected DecodeError, got nil")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("expected *DecodeError, got %T: %v", err, err)
			}
		})
	}
}

func TestDecodeLegacyPayloadWithoutVersion(t *testing.T) {
	data := base64.URLEncoding.EncodeToString([]byte(
		`{"persons":[{"id":"p1","name":"Alice"}],"items":[]}`,
	))
	ledger, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed on versionless payload: %v", err)
	}
	if len(ledger.Persons) != 1 || ledger.Persons[0].Name != "Alice" {
		t.Errorf("unexpected decode result: %+v", ledger)
	}
}
