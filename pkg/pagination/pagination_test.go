package pagination

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/prescriptions"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"explicit", "?limit=5&offset=10", 5, 10},
		{"clamped", "?limit=1000", MaxLimit, 0},
		{"skip alias", "?skip=40", DefaultLimit, 40},
		{"offset wins over skip", "?offset=3&skip=40", DefaultLimit, 3},
		{"zero offset", "?offset=0", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromContext(newContext(tt.query))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d", p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestFromContext_Rejects(t *testing.T) {
	for _, q := range []string{"?limit=0", "?limit=-1", "?limit=ten", "?offset=-5", "?skip=abc"} {
		t.Run(q, func(t *testing.T) {
			if _, err := FromContext(newContext(q)); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestBind_BadRequest(t *testing.T) {
	_, err := Bind(newContext("?limit=abc"))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		params   Params
		wantMore bool
		wantNext *int
	}{
		{"first of several", 50, Params{Limit: 20}, true, intPtr(20)},
		{"last partial", 50, Params{Limit: 20, Offset: 40}, false, nil},
		{"exact fit", 20, Params{Limit: 20}, false, nil},
		{"empty", 0, Params{Limit: 20}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage([]string{"a"}, tt.total, tt.params)
			if page.HasMore != tt.wantMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.wantMore)
			}
			switch {
			case tt.wantNext == nil && page.NextOffset != nil:
				t.Errorf("expected no next offset, got %d", *page.NextOffset)
			case tt.wantNext != nil && (page.NextOffset == nil || *page.NextOffset != *tt.wantNext):
				t.Errorf("expected next offset %d, got %v", *tt.wantNext, page.NextOffset)
			}
			if page.Limit != tt.params.Limit || page.Offset != tt.params.Offset || page.Total != tt.total {
				t.Errorf("unexpected envelope %+v", page)
			}
		})
	}
}

func TestNewPage_NilItemsEncodeAsEmptyArray(t *testing.T) {
	var items []int
	data, err := json.Marshal(NewPage(items, 0, Params{Limit: DefaultLimit}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"data":[],"total":0,"limit":20,"offset":0,"has_more":false}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func intPtr(n int) *int { return &n }
