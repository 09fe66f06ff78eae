package browser

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/driver/memory"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

// testClock advances only when slept on. onSleep lets a test change the
// page between attempts, the way a slow page would.
type testClock struct {
	now     time.Time
	sleeps  int
	onSleep func(n int)
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.sleeps++
	if c.onSleep != nil {
		c.onSleep(c.sleeps)
	}
}

func newSession(t *testing.T, markup string, opts ...SessionOption) (*Session, *memory.Driver, *testClock) {
	t.Helper()
	d, err := memory.New(memory.Config{HTML: markup})
	require.NoError(t, err)
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]SessionOption{WithEngine(robust.New(robust.WithClock(clock)))}, opts...)
	s := NewSession(d, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, d, clock
}

var instant = WithBaseTimeouts(robust.Timeouts{})

func rerender(t *testing.T, d *memory.Driver, at int, clock *testClock, markup string) {
	clock.onSleep = func(n int) {
		if n == at {
			require.NoError(t, d.SetHTML(markup))
		}
	}
}

func TestFindButtonWaitsForRender(t *testing.T) {
	s, d, clock := newSession(t, `<p>loading</p>`)
	rerender(t, d, 3, clock, `<button>Pay</button>`)

	el, err := s.FindButton("Pay")
	require.NoError(t, err)
	assert.Equal(t, "button", el.Tag())
	assert.Equal(t, 3, clock.sleeps)
}

func TestFindButtonSurfacesNotFoundAfterTimeout(t *testing.T) {
	s, _, clock := newSession(t, `<button>Cancel</button>`)

	_, err := s.FindButton("Pay")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Contains(t, err.Error(), `button not found: "Pay"`)
	assert.Equal(t, 10, clock.sleeps)
}

func TestElementScopeIsResolvedOnEveryAttempt(t *testing.T) {
	s, d, clock := newSession(t, `<section id="orders"><h2>Orders</h2><p>empty</p></section><button>Cancel</button>`)
	rerender(t, d, 2, clock, `<section id="orders"><h2>Orders</h2><button>Pay</button></section><button>Cancel</button>`)

	orders := s.FindSection("Orders")
	el, err := orders.FindButton("Pay")
	require.NoError(t, err)
	assert.Equal(t, "Pay", el.Text())

	err = s.WithTimeouts(func() error {
		_, err := orders.FindButton("Cancel")
		return err
	}, robust.Zero())
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
}

func TestHasContentAndNegation(t *testing.T) {
	s, d, clock := newSession(t, `<p>Saving...</p>`)
	rerender(t, d, 2, clock, `<p>Saved</p>`)

	gone, err := s.HasNoContent("Saving")
	require.NoError(t, err)
	assert.True(t, gone)

	present, err := s.HasContent("Saved")
	require.NoError(t, err)
	assert.True(t, present)

	before := clock.now
	present, err = s.HasContent("Nope")
	require.NoError(t, err)
	assert.False(t, present)
	assert.GreaterOrEqual(t, clock.now.Sub(before), robust.DefaultTimeout)

	gone, err = s.HasNoContent("Saved")
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestHasContentMatch(t *testing.T) {
	s, _, _ := newSession(t, `<p>Order #1234 confirmed</p>`, instant)

	ok, err := s.HasContentMatch(regexp.MustCompile(`Order #\d+`))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasNoContentMatch(regexp.MustCompile(`Invoice #\d+`))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasCSSAndXPath(t *testing.T) {
	s, _, _ := newSession(t, `<ul><li class="item">a</li><li class="item" hidden>b</li></ul>`, instant)

	ok, err := s.HasCSS("li.item")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasNoCSS("li.missing")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasXPath("//li[text()='a']")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasNoXPath("//li[text()='b']")
	require.NoError(t, err)
	assert.True(t, ok, "hidden matches do not count")
}

func TestClickButtonRetriesUntilClickable(t *testing.T) {
	s, d, clock := newSession(t, `<button disabled>Pay</button>`)
	rerender(t, d, 1, clock, `<button>Pay</button>`)

	require.NoError(t, s.ClickButton("Pay"))
	assert.Len(t, d.Clicks(), 1)
}

func TestClickLinkAndHover(t *testing.T) {
	s, d, _ := newSession(t, `<a href="#top">Menu</a>`, instant)

	require.NoError(t, s.Hover(Link("Menu")))
	require.NotNil(t, d.Hovered())
	assert.Equal(t, "Menu", d.Hovered().Text())

	require.NoError(t, s.ClickLink("Menu"))
	assert.Equal(t, []string{"a"}, d.Clicks())
}

func TestClickButtonUntilClicksAgain(t *testing.T) {
	s, d, clock := newSession(t, `<button>Next</button>`)
	clicks := 0
	d.OnClick(func(core.Element) {
		clicks++
		if clicks == 2 {
			require.NoError(t, d.SetHTML(`<button>Next</button><p>Done</p>`))
		}
	})

	err := s.ClickButtonUntil("Next", func() (bool, error) { return s.HasContent("Done") }, 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, clicks)
	// the condition is checked without waiting of its own
	assert.Equal(t, 3, clock.sleeps)
}

func TestClickButtonUntilTimesOut(t *testing.T) {
	s, d, _ := newSession(t, `<button>Next</button>`)

	err := s.ClickButtonUntil("Next", func() (bool, error) { return s.HasContent("Done") }, 300*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConditionTimeout))
	assert.GreaterOrEqual(t, len(d.Clicks()), 2)
}

func TestFindStateReturnsFirstReached(t *testing.T) {
	s, d, clock := newSession(t, `<p>Signing in</p>`)
	rerender(t, d, 2, clock, `<p>Welcome back</p>`)

	failed := robust.NewState("failed", func() (bool, error) { return s.HasContent("Invalid password") })
	welcome := robust.NewState("welcome", func() (bool, error) { return s.HasContent("Welcome") })

	got, err := s.FindState(failed, welcome)
	require.NoError(t, err)
	assert.Same(t, welcome, got)
	assert.Equal(t, 2, clock.sleeps)
	assert.Equal(t, robust.DefaultTimeouts(), s.Timeouts())
	assert.Equal(t, 0, s.Settings().Depth())
}

func TestFindStateTimeout(t *testing.T) {
	s, _, _ := newSession(t, `<p>Signing in</p>`)

	_, err := s.FindState(robust.NewState("welcome", func() (bool, error) { return s.HasContent("Welcome") }))
	assert.True(t, errors.Is(err, core.ErrStateTimeout))
}

func TestWithTimeoutsNestsAndRestores(t *testing.T) {
	s, _, clock := newSession(t, `<p>nothing</p>`)

	err := s.WithTimeouts(func() error {
		assert.Equal(t, 5*time.Second, s.Timeouts().Timeout)
		return s.WithTimeouts(func() error {
			_, err := s.FindButton("Missing")
			return err
		}, robust.Zero())
	}, robust.WithTimeout(5*time.Second))

	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Equal(t, 0, clock.sleeps)
	assert.Equal(t, robust.DefaultTimeouts(), s.Timeouts())
}

func TestConsideringInvisibleElements(t *testing.T) {
	s, _, _ := newSession(t, `<button hidden>Secret</button>`, instant)

	_, err := s.FindButton("Secret")
	assert.True(t, errors.Is(err, core.ErrElementNotFound))

	el, err := s.ConsideringInvisibleElements().FindButton("Secret")
	require.NoError(t, err)
	assert.False(t, el.Visible())

	_, err = s.FindButton("Secret")
	assert.True(t, errors.Is(err, core.ErrElementNotFound), "the original scope is unchanged")
}

func TestFrameScope(t *testing.T) {
	s, _, _ := newSession(t, `<section><h2>Checkout</h2><p>outside</p></section>
		<iframe title="Payment" srcdoc="<button>Pay</button><p>card number</p>"></iframe>`, instant)

	frame := s.FindFrame("Payment")
	el, err := frame.FindButton("Pay")
	require.NoError(t, err)
	assert.Equal(t, "Pay", el.Text())

	ok, err := frame.HasContent("card number")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = frame.HasContent("outside")
	require.NoError(t, err)
	assert.False(t, ok)

	// frames are looked up in the whole document whatever the scope
	ok, err = s.FindSection("Checkout").FindFrame("Payment").HasContent("card number")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasAndHasNo(t *testing.T) {
	s, _, _ := newSession(t, `<section id="orders"><h2>Orders</h2></section><button>Go</button>`, instant)

	ok, err := s.Has(Button("Go"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasNo(Button("Go"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.HasNo(Link("Missing"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(s.FindSection("Orders").Finder())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(s.FindSection("Invoices").Finder())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Has(CSS("p["))
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
}

func TestInvalidLocatorStopsRetrying(t *testing.T) {
	s, _, clock := newSession(t, `<p>x</p>`)

	_, err := s.HasCSS("p[")
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
	_, err = s.FindCSS("p[")
	assert.True(t, errors.Is(err, core.ErrInvalidLocator))
	assert.Equal(t, 0, clock.sleeps)
}

func TestCheckUncheckChoose(t *testing.T) {
	s, _, _ := newSession(t, `<form>
		<label for="terms">Accept terms</label><input type="checkbox" id="terms">
		<input type="radio" name="plan" value="Basic" id="basic">
		<input type="radio" name="plan" value="Pro" id="pro" checked>
	</form>`, instant)

	require.NoError(t, s.Check("Accept terms"))
	terms, err := s.FindID("terms")
	require.NoError(t, err)
	assert.True(t, terms.HasAttribute("checked"))

	require.NoError(t, s.Uncheck("Accept terms"))
	assert.False(t, terms.HasAttribute("checked"))

	require.NoError(t, s.Choose("Basic"))
	basic, err := s.FindID("basic")
	require.NoError(t, err)
	pro, err := s.FindID("pro")
	require.NoError(t, err)
	assert.True(t, basic.HasAttribute("checked"))
	assert.False(t, pro.HasAttribute("checked"))
}

func TestExecuteScriptIsNotRetried(t *testing.T) {
	s, _, clock := newSession(t, `<p>x</p>`)

	out, err := s.ExecuteScript("1 + 2")
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	_, err = s.ExecuteScript("throw new Error('boom')")
	assert.True(t, errors.Is(err, core.ErrDriver))
	assert.Equal(t, 0, clock.sleeps)
}

func TestVisitResolvesAgainstAppHost(t *testing.T) {
	d, err := memory.New(memory.Config{Pages: map[string]string{"/login": `<h1>Sign in</h1>`}})
	require.NoError(t, err)
	s := NewSession(d, WithAppHost("http://app.test/"), WithBaseTimeouts(robust.Timeouts{}))
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Visit("/login"))
	assert.Equal(t, "http://app.test/login", d.Info().URL)

	ok, err := s.HasContent("Sign in")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := s.URL("https://other.test/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.test/x", u)
}

func TestFindAllDoesNotWait(t *testing.T) {
	s, _, clock := newSession(t, `<ul><li>a</li><li hidden>b</li></ul>`)

	items, err := s.FindAllCSS("li")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.FindAllXPath("//p")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, clock.sleeps)
}

func TestElementScopeNowAndElement(t *testing.T) {
	s, _, clock := newSession(t, `<p>x</p>`)

	_, err := s.FindSection("Missing").Now()
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Equal(t, 0, clock.sleeps)

	_, err = s.FindSection("Missing").Element()
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Equal(t, 10, clock.sleeps)
}

func TestFindIDAmbiguous(t *testing.T) {
	s, _, _ := newSession(t, `<p id="x">a</p><p id="x">b</p>`, instant)

	_, err := s.FindID("x")
	assert.True(t, errors.Is(err, core.ErrAmbiguous))
}

func TestQueryAndRetryUseSessionTimeouts(t *testing.T) {
	s, _, clock := newSession(t, `<p>x</p>`)

	calls := 0
	ok, err := s.Query(func() (bool, error) {
		calls++
		return calls >= 3, nil
	}, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, clock.sleeps)

	attempts := 0
	err = s.RetryUntilTimeout(func() error {
		attempts++
		if attempts < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithinFinder(t *testing.T) {
	s, _, _ := newSession(t, `<div class="card"><button>Buy</button></div><button>Other</button>`, instant)

	card := s.Within(CSS("div.card"))
	_, err := card.FindButton("Buy")
	require.NoError(t, err)

	_, err = card.FindButton("Other")
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Equal(t, `css "div.card"`, card.String())
}
