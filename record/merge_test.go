package record

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/hazyhaar/surfacekeeper/fields"
)

// decode builds a Record the way jsonindex.Load does, so tests exercise the
// []any / map[string]any shapes found on disk.
func decode(t *testing.T, s string) Record {
	t.Helper()
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return r
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestMergeScenario(t *testing.T) {
	base := decode(t, `{"code":"Y0385","name":"Fine Oak","colors":["Brown"]}`)
	frag := decode(t, `{"code":"Y0385","colors":["Beige"],"finish":[{"code":"#12","name":"Matte"}]}`)

	got := Merge(base, frag)

	want := `{"code":"Y0385","colors":["Brown","Beige"],"finish":[{"code":"#12","name":"Matte"}],"name":"Fine Oak"}`
	if s := mustJSON(t, got); s != want {
		t.Errorf("Merge:\n got %s\nwant %s", s, want)
	}
}

func TestMergeIdempotent(t *testing.T) {
	cases := []struct {
		name string
		base string
		frag string
	}{
		{"facets", `{"code":"D354","colors":["Red"],"shade":"Light"}`, `{"code":"d354","color":["Blue","Red"],"shades":["Dark"]}`},
		{"finish", `{"code":"D354","finish":"#38 Fine Velvet"}`, `{"finish":[{"code":"#38","name":"fine velvet"},{"name":"Gloss"}]}`},
		{"scalars", `{"code":"D354"}`, `{"name":" Walnut ","product_link":"https://x/y","no_repeat":"yes"}`},
		{"generic", `{"code":"D354","tags":["a"],"meta":{"a":1},"count":0}`, `{"tags":"b","meta":{"a":2,"b":3},"count":4,"extra":"x"}`},
		{"empty base", `{}`, `{"code":"Y0385","colors":["Beige"]}`},
		{"texture", `{"code":"Y0385"}`, `{"texture_scale":{"width":60,"height":144},"image_url":"https://img/a.jpg"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := decode(t, tc.base)
			frag := decode(t, tc.frag)
			once := Merge(base, frag)
			twice := Merge(once, frag)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("not idempotent:\n once %s\ntwice %s", mustJSON(t, once), mustJSON(t, twice))
			}
		})
	}
}

func TestMergeMonotonicFacets(t *testing.T) {
	base := decode(t, `{"code":"A100","colors":["Red","Green"],"species":["Oak"],"cut":["Plain"]}`)
	frags := []Record{
		decode(t, `{"colors":[]}`),
		decode(t, `{"colors":null,"species":"Oak"}`),
		decode(t, `{"color":"Blue"}`),
		decode(t, `{}`),
	}
	for i, f := range frags {
		got := Merge(base, f)
		for _, k := range fields.ArrayFacets() {
			if len(got.Strings(k)) < len(base.Strings(k)) {
				t.Errorf("frag %d: %s shrank from %v to %v", i, k, base.Strings(k), got.Strings(k))
			}
		}
	}
}

func TestMergeNoScalarErasure(t *testing.T) {
	base := decode(t, `{"code":"A100","name":"Fine Oak","product-link":"https://a/1","surface-group":"Laminate","description":"Warm","no_repeat":false}`)
	frag := decode(t, `{"name":"Other","product-link":"https://b/2","surface-group":"Quartz","description":"","no_repeat":true}`)

	got := Merge(base, frag)
	if got[fields.Name] != "Fine Oak" {
		t.Errorf("name: got %v, want Fine Oak", got[fields.Name])
	}
	if got[fields.ProductLink] != "https://a/1" {
		t.Errorf("product-link: got %v", got[fields.ProductLink])
	}
	if got[fields.SurfaceGroup] != "Laminate" {
		t.Errorf("surface-group: got %v", got[fields.SurfaceGroup])
	}
	if got[fields.Description] != "Warm" {
		t.Errorf("description: got %v", got[fields.Description])
	}
	if got[fields.NoRepeat] != false {
		t.Errorf("no_repeat: got %v, want false", got[fields.NoRepeat])
	}
}

func TestMergeFillsAbsentScalars(t *testing.T) {
	base := decode(t, `{"code":"A100","name":"  "}`)
	frag := decode(t, `{"name":" Fine Oak ","link":"https://a/1","no-repeat":"true"}`)

	got := Merge(base, frag)
	if got[fields.Name] != "Fine Oak" {
		t.Errorf("name: got %q, want %q", got[fields.Name], "Fine Oak")
	}
	if got[fields.ProductLink] != "https://a/1" {
		t.Errorf("product-link: got %v", got[fields.ProductLink])
	}
	if got[fields.NoRepeat] != true {
		t.Errorf("no_repeat: got %v, want true", got[fields.NoRepeat])
	}
	if _, ok := got["link"]; ok {
		t.Error("fragment alias key link copied into output")
	}
}

func TestMergeCode(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want any
	}{
		{"new wins", `{"code":"Y0385"}`, `{"code":"y0386"}`, "Y0386"},
		{"empty new keeps old", `{"code":"y0385"}`, `{"code":""}`, "Y0385"},
		{"missing new keeps old", `{"code":"Y0385"}`, `{}`, "Y0385"},
		{"neither", `{}`, `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(decode(t, tt.old), decode(t, tt.new))
			if got[fields.Code] != tt.want {
				t.Errorf("code: got %v, want %v", got[fields.Code], tt.want)
			}
		})
	}
}

func TestMergeAliasConvergence(t *testing.T) {
	base := decode(t, `{"code":"B200","color":["Red"]}`)
	frag := decode(t, `{"colors":["Blue"]}`)

	got := Merge(base, frag)
	colors, ok := got[fields.Colors].([]string)
	if !ok {
		t.Fatalf("colors: got %T, want []string", got[fields.Colors])
	}
	if !reflect.DeepEqual(colors, []string{"Red", "Blue"}) {
		t.Errorf("colors: got %v, want [Red Blue]", colors)
	}
	if _, ok := got["color"]; ok {
		t.Error("alias key color still present after merge")
	}

	// A second canonicalization pass has nothing left to fold.
	again := Canonical(got)
	if !reflect.DeepEqual(again, got) {
		t.Errorf("canonical pass changed record:\n got %s\nwant %s", mustJSON(t, again), mustJSON(t, got))
	}
}

func TestMergeFinishDedup(t *testing.T) {
	a := decode(t, `{"finish":[{"code":"#38","name":"Fine Velvet"}]}`)
	b := decode(t, `{"finish":[{"code":"#38","name":"Fine Velvet"}]}`)

	got := Merge(a, b)
	fin, ok := got[fields.Finish].([]Finish)
	if !ok {
		t.Fatalf("finish: got %T, want []Finish", got[fields.Finish])
	}
	if len(fin) != 1 {
		t.Errorf("finish: got %d entries, want 1: %+v", len(fin), fin)
	}
}

func TestMergeFinishOrder(t *testing.T) {
	a := decode(t, `{"finish":{"#38":"Fine Velvet"}}`)
	b := decode(t, `{"finish":["#12 Matte","#38 FINE VELVET","Gloss"]}`)

	got := Merge(a, b)
	want := []Finish{{Code: "#38", Name: "Fine Velvet"}, {Code: "#12", Name: "Matte"}, {Name: "Gloss"}}
	if !reflect.DeepEqual(got[fields.Finish], want) {
		t.Errorf("finish: got %+v, want %+v", got[fields.Finish], want)
	}
}

func TestMergeGenericFallthrough(t *testing.T) {
	base := decode(t, `{"tags":["a",{"k":1}],"meta":{"a":1,"z":null},"count":0,"label":"old","mixed":"x"}`)
	frag := decode(t, `{"tags":[{"k":1},"b"],"meta":{"a":2,"b":3,"z":"filled"},"count":5,"label":"new","mixed":["y","x"],"fresh":"value","nothing":null}`)

	got := Merge(base, frag)

	if s := mustJSON(t, got["tags"]); s != `["a",{"k":1},"b"]` {
		t.Errorf("tags: got %s", s)
	}
	if s := mustJSON(t, got["meta"]); s != `{"a":1,"b":3,"z":"filled"}` {
		t.Errorf("meta: got %s", s)
	}
	if got["count"] != float64(5) {
		t.Errorf("count: got %v, want 5 (old falsy)", got["count"])
	}
	if got["label"] != "old" {
		t.Errorf("label: got %v, want old", got["label"])
	}
	if s := mustJSON(t, got["mixed"]); s != `["x","y"]` {
		t.Errorf("mixed: got %s, want [\"x\",\"y\"]", s)
	}
	if got["fresh"] != "value" {
		t.Errorf("fresh: got %v", got["fresh"])
	}
	if _, ok := got["nothing"]; ok {
		t.Error("null fragment value stored")
	}
}

func TestMergeReportCoercedKeys(t *testing.T) {
	base := decode(t, `{"widths":"60","tags":["a"],"label":"old","meta":{"a":1}}`)
	frag := decode(t, `{"widths":["48"],"tags":"b","label":"new","meta":{"b":2},"colors":"Red"}`)

	got, coerced := MergeReport(base, frag)
	if want := []string{"tags", "widths"}; !reflect.DeepEqual(coerced, want) {
		t.Fatalf("coerced = %q, want %q", coerced, want)
	}
	if s := mustJSON(t, got["widths"]); s != `["60","48"]` {
		t.Errorf("widths: got %s", s)
	}
	if !reflect.DeepEqual(got, Merge(base, frag)) {
		t.Error("MergeReport record differs from Merge")
	}

	if _, coerced := MergeReport(nil, frag); len(coerced) != 0 {
		t.Errorf("coerced on empty old: %q", coerced)
	}
}

func TestMergeKeepsUnknownOldFields(t *testing.T) {
	base := decode(t, `{"code":"C300","legacy_note":"keep me","colour":"Teal"}`)
	got := Merge(base, decode(t, `{"code":"C300"}`))
	if got["legacy_note"] != "keep me" {
		t.Errorf("legacy_note: got %v", got["legacy_note"])
	}
	if !reflect.DeepEqual(got[fields.Colors], []string{"Teal"}) {
		t.Errorf("colors: got %v, want [Teal]", got[fields.Colors])
	}
}

func TestMergeAliasBackfill(t *testing.T) {
	base := decode(t, `{"code":"C300","surface_group":"Compact","image_url":"https://img/c.jpg"}`)
	got := Merge(base, Record{})

	if got[fields.SurfaceGroup] != "Compact" {
		t.Errorf("surface-group: got %v, want Compact", got[fields.SurfaceGroup])
	}
	if got["surface_group"] != "Compact" {
		t.Error("alias key surface_group removed")
	}
	if got[fields.TextureImageURL] != "https://img/c.jpg" {
		t.Errorf("texture_image_url: got %v", got[fields.TextureImageURL])
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := decode(t, `{"code":"C300","colors":["Red"],"meta":{"a":1}}`)
	frag := decode(t, `{"colors":["Blue"],"meta":{"b":2}}`)
	baseJSON := mustJSON(t, base)
	fragJSON := mustJSON(t, frag)

	_ = Merge(base, frag)

	if mustJSON(t, base) != baseJSON {
		t.Errorf("old record mutated: %s", mustJSON(t, base))
	}
	if mustJSON(t, frag) != fragJSON {
		t.Errorf("fragment mutated: %s", mustJSON(t, frag))
	}
}

func TestMergeCommutativeOverFacets(t *testing.T) {
	a := decode(t, `{"code":"C300","colors":["Red"],"species":["Oak"]}`)
	b := decode(t, `{"code":"C300","colors":["Blue","Red"],"species":["Ash"]}`)

	ab := Merge(a, b)
	ba := Merge(b, a)
	for _, k := range []string{fields.Colors, fields.Species} {
		if !sameSet(ab.Strings(k), ba.Strings(k)) {
			t.Errorf("%s: %v vs %v", k, ab.Strings(k), ba.Strings(k))
		}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[string]bool, len(a))
	for _, s := range a {
		m[s] = true
	}
	for _, s := range b {
		if !m[s] {
			return false
		}
	}
	return true
}

func TestRecordAccessors(t *testing.T) {
	r := decode(t, `{"code":" y0385 ","link":"https://a/1","color":["Red"],"colors":["Red","Blue"],"no-repeat":"yes","scale":{"width":"60","height":144}}`)
	if r.Code() != "Y0385" {
		t.Errorf("Code: got %q", r.Code())
	}
	if r.Scalar(fields.ProductLink) != "https://a/1" {
		t.Errorf("Scalar(product-link): got %q", r.Scalar(fields.ProductLink))
	}
	if got := r.Strings(fields.Colors); !reflect.DeepEqual(got, []string{"Red", "Blue"}) {
		t.Errorf("Strings(colors): got %v", got)
	}
	if b, ok := r.Bool(fields.NoRepeat); !ok || !b {
		t.Errorf("Bool(no_repeat): got %v, %v", b, ok)
	}
	if s, ok := r.Size(fields.TextureScale); !ok || s.Width != 60 || s.Height != 144 {
		t.Errorf("Size(texture_scale): got %+v, %v", s, ok)
	}
	if !r.Has(fields.Colors) || r.Has(fields.Name) {
		t.Error("Has: unexpected result")
	}
}
