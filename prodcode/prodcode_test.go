package prodcode

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/record"
)

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"Y0385", true},
		{"ABC12", true},
		{"1234567", true},
		{"AB", false},
		{"ABCDEFG", false},
		{"12", false},
		{"12345678", false},
		{"Y03-85", false},
		{"y0385", false},
		{"A1B", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.code); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestFromURL(t *testing.T) {
	got := FromURL("https://shop.example.com/laminates/fine-oak-y0385?color=brown")
	want := []string{"brown", "y0385", "fine-oak-y0385", "laminates"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFromURLStripsExtension(t *testing.T) {
	got := FromURL("/p/4417.html")
	want := []string{"4417", "p"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFromURLEmpty(t *testing.T) {
	if got := FromURL("  "); got != nil {
		t.Fatalf("got %q, want nil", got)
	}
}

func TestFromImageURL(t *testing.T) {
	got := FromImageURL("https://cdn.example.com/img/Y0385_60x144.jpg")
	want := []string{"Y0385"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCleanSKU(t *testing.T) {
	tests := map[string]string{
		"SKU: Y0385":  "Y0385",
		"Item # 4417": "4417",
		"  y0385  ":   "y0385",
		"sku#W2211":   "W2211",
	}
	for in, want := range tests {
		if got := CleanSKU(in); got != want {
			t.Errorf("CleanSKU(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolvePriority(t *testing.T) {
	cands := Candidates("bad", "https://x/laminates/fine-oak-y0385", "SKU: 4417", "https://cdn/W2211.jpg")
	code, src, err := Resolve(cands)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "Y0385" || src != SourceProductURL {
		t.Fatalf("got %q from %s, want Y0385 from product_url", code, src)
	}
}

func TestResolveStoredWins(t *testing.T) {
	cands := Candidates(" y0385 ", "https://x/p/w2211", "", "")
	code, src, err := Resolve(cands)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "Y0385" || src != SourceStored {
		t.Fatalf("got %q from %s, want Y0385 from stored", code, src)
	}
}

func TestResolveUnresolved(t *testing.T) {
	cands := Candidates("AB", "https://x/laminates/oak", "", "")
	_, _, err := Resolve(cands)
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("got %v, want ErrUnresolved", err)
	}
	if got := BestEffort(cands); got != "AB" {
		t.Fatalf("best effort = %q, want AB", got)
	}
}

func TestBestEffortEmpty(t *testing.T) {
	if got := BestEffort(nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestForRecord(t *testing.T) {
	r := record.Record{
		"url": "https://x/p/item",
		"sku": "Item # 4417",
	}
	code, src, err := Resolve(ForRecord(r))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "4417" || src != SourceSKU {
		t.Fatalf("got %q from %s, want 4417 from sku", code, src)
	}
}

func TestAuditRepairsAndMerges(t *testing.T) {
	records := []record.Record{
		{"code": "FINE", "product-link": "https://x/laminates/fine-oak-y0385", "colors": []any{"Beige"}},
		{"code": "Y0385", "name": "Fine Oak", "colors": []any{"Brown"}},
		{"code": "", "product-link": "https://x/laminates/mystery"},
	}
	out, rep := Audit(records, nil)

	if rep.Checked != 3 {
		t.Errorf("checked = %d, want 3", rep.Checked)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if len(rep.Repaired) != 1 {
		t.Fatalf("repaired = %+v", rep.Repaired)
	}
	fix := rep.Repaired[0]
	if fix.OldCode != "FINE" || fix.NewCode != "Y0385" || fix.Source != SourceProductURL || !fix.Merged {
		t.Errorf("repair = %+v", fix)
	}
	if got := out[0].Strings(fields.Colors); !reflect.DeepEqual(got, []string{"Brown", "Beige"}) {
		t.Errorf("colors = %q, want [Brown Beige]", got)
	}
	if got := out[0].Scalar(fields.Name); got != "Fine Oak" {
		t.Errorf("name = %q", got)
	}
	if len(rep.Unresolved) != 1 || rep.Unresolved[0].Reason != "no valid candidate" {
		t.Errorf("unresolved = %+v", rep.Unresolved)
	}
	if rep.Clean() {
		t.Error("report should not be clean")
	}
	if records[0]["code"] != "FINE" {
		t.Error("input record was modified")
	}
}

func TestAuditUsesDetailEvidence(t *testing.T) {
	records := []record.Record{
		{"code": "BAD", "product-link": "https://x/p/oak"},
	}
	ev := Evidence{"https://x/p/oak": {"sku": "SKU: 4417"}}
	out, rep := Audit(records, ev)
	if len(rep.Repaired) != 1 || rep.Repaired[0].Source != SourceSKU || rep.Repaired[0].Merged {
		t.Fatalf("repaired = %+v", rep.Repaired)
	}
	if got := out[0].Code(); got != "4417" {
		t.Fatalf("code = %q, want 4417", got)
	}
	if !rep.Clean() {
		t.Errorf("unresolved = %+v", rep.Unresolved)
	}
}

func TestAuditNoEvidence(t *testing.T) {
	_, rep := Audit([]record.Record{{"code": "X"}}, nil)
	if len(rep.Unresolved) != 1 || rep.Unresolved[0].Reason != "no evidence" {
		t.Fatalf("unresolved = %+v", rep.Unresolved)
	}
}
