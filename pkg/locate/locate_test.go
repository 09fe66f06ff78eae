package locate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/browserscope/pkg/constraint"
	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/driver/memory"
	"github.com/devicelab-dev/browserscope/pkg/locate"
)

var (
	doc     = core.DocumentScope()
	visible = core.FindOptions{}
)

func page(t *testing.T, markup string) *memory.Driver {
	t.Helper()
	d, err := memory.New(memory.Config{HTML: markup})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestFindButton_TextBeatsPartialID(t *testing.T) {
	d := page(t, `
		<button id="ctl00_Main_Save">Store</button>
		<button id="other">Save</button>`)

	el, err := d.FindButton(doc, "Save", visible)
	require.NoError(t, err)
	assert.Equal(t, "other", el.Attribute("id"))
}

func TestFindButton_Tiers(t *testing.T) {
	d := page(t, `
		<input type="submit" id="s1" value="Submit order">
		<button id="by-id">Other</button>
		<button name="by-name">Other</button>
		<input type="image" id="img" alt="Search" src="s.png">
		<button id="form_go_button">Other</button>
		<a role="button" id="fancy">Fancy</a>`)

	tests := []struct {
		locator string
		wantID  string
	}{
		{"Submit order", "s1"},
		{"by-id", "by-id"},
		{"by-name", ""},
		{"Search", "img"},
		{"go", "form_go_button"},
		{"Fancy", "fancy"},
	}
	for _, tt := range tests {
		el, err := d.FindButton(doc, tt.locator, visible)
		require.NoError(t, err, tt.locator)
		assert.Equal(t, tt.wantID, el.Attribute("id"), tt.locator)
	}
}

func TestFindButton_HiddenExcluded(t *testing.T) {
	d := page(t, `
		<button id="hidden" style="display:none">Continue</button>
		<button id="continue">Next</button>`)

	el, err := d.FindButton(doc, "Continue", visible)
	require.NoError(t, err)
	assert.Equal(t, "continue", el.Attribute("id"), "lower-tier visible match wins over hidden text match")

	el, err = d.FindButton(doc, "Continue", core.FindOptions{ConsiderInvisible: true})
	require.NoError(t, err)
	assert.Equal(t, "hidden", el.Attribute("id"))
}

func TestFindButton_FirstInDocumentOrderWithinTier(t *testing.T) {
	d := page(t, `<button id="a">Go</button><button id="b">Go</button>`)

	el, err := d.FindButton(doc, "Go", visible)
	require.NoError(t, err)
	assert.Equal(t, "a", el.Attribute("id"))
}

func TestFindButton_NotFound(t *testing.T) {
	d := page(t, `<a href="#">Go</a>`)

	_, err := d.FindButton(doc, "Go", visible)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Contains(t, err.Error(), `button not found: "Go"`)
}

func TestFindLink_ExactTextOnly(t *testing.T) {
	d := page(t, `<a id="x" href="/a">Home page</a><a id="home" href="/b">Home</a>`)

	el, err := d.FindLink(doc, "Home", visible)
	require.NoError(t, err)
	assert.Equal(t, "home", el.Attribute("id"))

	_, err = d.FindLink(doc, "x", visible)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
}

func TestFindField_LabelFor(t *testing.T) {
	d := page(t, `<label for="x">Name</label><input id="x"><input id="Name">`)

	el, err := d.FindField(doc, "Name", visible)
	require.NoError(t, err)
	assert.Equal(t, "x", el.Attribute("id"))
}

func TestFindField_NestedLabel(t *testing.T) {
	d := page(t, `<label>Email <span><input type="hidden" id="token"><input type="email" id="nested"></span></label>`)

	el, err := d.FindField(doc, "Email", visible)
	require.NoError(t, err)
	assert.Equal(t, "nested", el.Attribute("id"))
}

func TestFindField_LabelIsPattern(t *testing.T) {
	d := page(t, `<label for="pw">Password (8+ chars)</label><input type="password" id="pw">`)

	el, err := d.FindField(doc, "^Pass", visible)
	require.NoError(t, err)
	assert.Equal(t, "pw", el.Attribute("id"))

	el, err = d.FindField(doc, "(8+", visible)
	require.NoError(t, err, "invalid patterns match literally")
	assert.Equal(t, "pw", el.Attribute("id"))
}

func TestFindField_Fallbacks(t *testing.T) {
	d := page(t, `
		<input id="first">
		<input name="last">
		<textarea placeholder="Say something"></textarea>
		<input type="radio" name="plan" value="gold" id="plan_gold">
		<input type="checkbox" value="gold" id="not-a-radio">
		<select id="ctl00_Country"></select>
		<input type="submit" id="submitter" value="first">`)

	tests := []struct {
		locator string
		wantTag string
		wantID  string
	}{
		{"first", "input", "first"},
		{"last", "input", ""},
		{"Say something", "textarea", ""},
		{"gold", "input", "plan_gold"},
		{"Country", "select", "ctl00_Country"},
	}
	for _, tt := range tests {
		el, err := d.FindField(doc, tt.locator, visible)
		require.NoError(t, err, tt.locator)
		assert.Equal(t, tt.wantTag, el.Tag(), tt.locator)
		assert.Equal(t, tt.wantID, el.Attribute("id"), tt.locator)
	}
}

func TestFindField_LabelTargetHiddenFallsBack(t *testing.T) {
	d := page(t, `<label for="gone">Code</label><input id="gone" hidden><input name="Code" id="real">`)

	el, err := d.FindField(doc, "Code", visible)
	require.NoError(t, err)
	assert.Equal(t, "real", el.Attribute("id"))
}

func TestFindField_UnresolvedForSearchesLabel(t *testing.T) {
	d := page(t, `<label for="renamed">Phone <input type="tel" id="inside"></label><input name="Phone" id="by-name">`)

	el, err := d.FindField(doc, "Phone", visible)
	require.NoError(t, err)
	assert.Equal(t, "inside", el.Attribute("id"))
}

func TestFindSection(t *testing.T) {
	d := page(t, `
		<div id="wrapper"><div><h2>Billing</h2></div></div>
		<section id="shipping"><h2>Shipping</h2></section>`)

	el, err := d.FindSection(doc, "shipping", visible)
	require.NoError(t, err)
	assert.Equal(t, "shipping", el.Attribute("id"))

	el, err = d.FindSection(doc, "Shipping", visible)
	require.NoError(t, err)
	assert.Equal(t, "shipping", el.Attribute("id"))

	// the inner div owns the heading directly and wins over the wrapper
	el, err = d.FindSection(doc, "Billing", visible)
	require.NoError(t, err)
	assert.Equal(t, "", el.Attribute("id"))
	assert.Equal(t, "Billing", el.Text())
}

func TestFindFieldset(t *testing.T) {
	d := page(t, `<fieldset id="addr"><legend>Address</legend><input name="street"></fieldset>`)

	for _, locator := range []string{"addr", "Address"} {
		el, err := d.FindFieldset(doc, locator, visible)
		require.NoError(t, err, locator)
		assert.Equal(t, "addr", el.Attribute("id"))
	}
	_, err := d.FindFieldset(doc, "street", visible)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
}

func TestFindID_Ambiguous(t *testing.T) {
	d := page(t, `<p id="dup">a</p><p id="dup">b</p><p id="once">c</p><p id="dup" hidden>d</p>`)

	_, err := d.FindID(doc, "dup", visible)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAmbiguous))

	el, err := d.FindID(doc, "once", visible)
	require.NoError(t, err)
	assert.Equal(t, "c", el.Text())

	_, err = d.FindID(doc, "none", visible)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
}

func TestScopedResolution(t *testing.T) {
	d := page(t, `
		<div id="left"><button>Edit</button></div>
		<div id="right"><button id="right-edit">Edit</button></div>`)

	right, err := d.FindID(doc, "right", visible)
	require.NoError(t, err)

	el, err := d.FindButton(core.ElementScope(right), "Edit", visible)
	require.NoError(t, err)
	assert.Equal(t, "right-edit", el.Attribute("id"))

	_, err = d.FindButton(core.ElementScope(nil), "Edit", visible)
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
}

func TestFirstMatching(t *testing.T) {
	d := page(t, `<p id="a" class="x">one</p><p id="b">two</p>`)
	root, err := d.Root(doc)
	require.NoError(t, err)
	candidates := locate.Descendants(root)

	el, name := locate.FirstMatching(candidates, constraint.OfTag("p"), []locate.Strategy{
		{Name: "text", Constraint: constraint.Text("two")},
		{Name: "id", Constraint: constraint.ID("a")},
	})
	require.NotNil(t, el)
	assert.Equal(t, "text", name)
	assert.Equal(t, "b", el.Attribute("id"))

	el, name = locate.FirstMatching(candidates, constraint.OfTag("div"), []locate.Strategy{
		{Name: "any", Constraint: constraint.Any()},
	})
	assert.Nil(t, el)
	assert.Empty(t, name)
}

func TestLabelPattern(t *testing.T) {
	assert.True(t, locate.LabelPattern("a.c").MatchString("abc"))
	assert.True(t, locate.LabelPattern("[x").MatchString("a [x b"))
}
