package canvas

import (
	"testing"
)

func TestController_ViewCommandAcceptsKnownViews(t *testing.T) {
	t.Parallel()

	c := NewController()
	if _, err := c.HandleCommand("/view hierarchy"); err != nil {
		t.Fatalf("HandleCommand(/view hierarchy) error = %v", err)
	}
	if c.View() != ViewHierarchy {
		t.Errorf("View() = %q, want hierarchy", c.View())
	}

	if _, err := c.HandleCommand("/view bogus"); err == nil {
		t.Error("HandleCommand(/view bogus) error = nil, want an error for an unknown view")
	}
}

func TestController_FilterCommandParsesAllKeys(t *testing.T) {
	t.Parallel()

	c := NewController()
	if _, err := c.HandleCommand("/filter nodeTypes=FUNC,FLOW phase=2 showDeleted=true searchTerm=checkout"); err != nil {
		t.Fatalf("HandleCommand(/filter ...) error = %v", err)
	}
	f := c.Filter()
	if len(f.NodeTypes) != 2 || f.NodeTypes[0] != "FUNC" || f.NodeTypes[1] != "FLOW" {
		t.Errorf("NodeTypes = %v, want [FUNC FLOW]", f.NodeTypes)
	}
	if f.Phase == nil || *f.Phase != 2 {
		t.Errorf("Phase = %v, want 2", f.Phase)
	}
	if !f.ShowDeleted {
		t.Error("ShowDeleted = false, want true")
	}
	if f.SearchTerm != "checkout" {
		t.Errorf("SearchTerm = %q, want checkout", f.SearchTerm)
	}
}

func TestController_FilterCommandRejectsMalformedArgument(t *testing.T) {
	t.Parallel()

	c := NewController()
	if _, err := c.HandleCommand("/filter phase=notanumber"); err == nil {
		t.Error("HandleCommand(/filter phase=notanumber) error = nil, want one")
	}
	if _, err := c.HandleCommand("/filter nodeTypes"); err == nil {
		t.Error("HandleCommand(/filter nodeTypes) error = nil, want one for a missing =value")
	}
}

func TestController_ClearFilterResetsToZeroValue(t *testing.T) {
	t.Parallel()

	c := NewController()
	_, _ = c.HandleCommand("/filter nodeTypes=FUNC")
	if c.Filter().IsZero() {
		t.Fatal("filter should not be zero after /filter")
	}
	if _, err := c.HandleCommand("/clear-filter"); err != nil {
		t.Fatalf("HandleCommand(/clear-filter) error = %v", err)
	}
	if !c.Filter().IsZero() {
		t.Error("filter should be zero after /clear-filter")
	}
}

func TestController_SelectAndClearSelection(t *testing.T) {
	t.Parallel()

	c := NewController()
	if _, err := c.HandleCommand("/select Login.UC.001 Buyer.ACTOR.001"); err != nil {
		t.Fatalf("HandleCommand(/select ...) error = %v", err)
	}
	sel := c.Selection()
	if !sel["Login.UC.001"] || !sel["Buyer.ACTOR.001"] {
		t.Errorf("Selection() = %v, want both IDs selected", sel)
	}

	if _, err := c.HandleCommand("/clear-selection"); err != nil {
		t.Fatalf("HandleCommand(/clear-selection) error = %v", err)
	}
	if len(c.Selection()) != 0 {
		t.Errorf("Selection() = %v, want empty after /clear-selection", c.Selection())
	}
}

func TestController_FocusRequiresExactlyOneArgument(t *testing.T) {
	t.Parallel()

	c := NewController()
	if _, err := c.HandleCommand("/focus"); err == nil {
		t.Error("HandleCommand(/focus) error = nil, want one for a missing argument")
	}
	if _, err := c.HandleCommand("/focus Login.UC.001 extra"); err == nil {
		t.Error("HandleCommand(/focus a b) error = nil, want one for too many arguments")
	}
	if _, err := c.HandleCommand("/focus Login.UC.001"); err != nil {
		t.Fatalf("HandleCommand(/focus Login.UC.001) error = %v", err)
	}
	if c.Focus() != "Login.UC.001" {
		t.Errorf("Focus() = %q, want Login.UC.001", c.Focus())
	}
}

func TestController_UnknownCommandReturnsError(t *testing.T) {
	t.Parallel()

	c := NewController()
	if _, err := c.HandleCommand("/bogus"); err == nil {
		t.Error("HandleCommand(/bogus) error = nil, want one")
	}
}

func TestController_RenderUsesCurrentState(t *testing.T) {
	t.Parallel()

	c := NewController()
	_, _ = c.HandleCommand("/view hierarchy")
	_, _ = c.HandleCommand("/focus Login.UC.001")

	data := c.Render(buildHierarchyState())
	if data.View != ViewHierarchy {
		t.Errorf("data.View = %q, want hierarchy", data.View)
	}
}
