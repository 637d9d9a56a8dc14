package session

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/bagctl/bag"
)

func TestSelectionOrderAndUniqueness(t *testing.T) {
	sel := NewSelection([]bag.TopicInfo{
		{Name: "/b"},
		{Name: "/a"},
		{Name: "/b"},
		{Name: "/c"},
	})
	test.That(t, sel.Len(), test.ShouldEqual, 3)
	test.That(t, sel.Entries(), test.ShouldResemble, []Entry{
		{Name: "/b", Included: true},
		{Name: "/a", Included: true},
		{Name: "/c", Included: true},
	})
	test.That(t, sel.Selected(), test.ShouldResemble, []string{"/b", "/a", "/c"})
}

func TestSelectionSet(t *testing.T) {
	sel := NewSelection([]bag.TopicInfo{{Name: "/a"}, {Name: "/b"}})

	test.That(t, sel.Set("/a", false), test.ShouldBeTrue)
	test.That(t, sel.Selected(), test.ShouldResemble, []string{"/b"})

	test.That(t, sel.Set("/unknown", true), test.ShouldBeFalse)
	test.That(t, sel.Len(), test.ShouldEqual, 2)
}

func TestSelectionSetAll(t *testing.T) {
	sel := NewSelection([]bag.TopicInfo{{Name: "/a"}, {Name: "/b"}})

	sel.SetAll(false)
	test.That(t, sel.Selected(), test.ShouldBeEmpty)
	test.That(t, sel.Len(), test.ShouldEqual, 2)

	sel.SetAll(true)
	test.That(t, sel.Selected(), test.ShouldResemble, []string{"/a", "/b"})
}

func TestSelectionReplace(t *testing.T) {
	sel := NewSelection([]bag.TopicInfo{{Name: "/a"}})
	sel.Set("/a", false)

	sel.Replace([]bag.TopicInfo{{Name: "/x"}, {Name: "/y"}})
	test.That(t, sel.Entries(), test.ShouldResemble, []Entry{
		{Name: "/x", Included: true},
		{Name: "/y", Included: true},
	})

	sel.Replace(nil)
	test.That(t, sel.Len(), test.ShouldEqual, 0)
	test.That(t, sel.Entries(), test.ShouldBeEmpty)
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
	test.That(t, DefaultConfig().Rate, test.ShouldEqual, 1.0)
	test.That(t, DefaultConfig().PublishClock, test.ShouldBeTrue)
	test.That(t, DefaultConfig().Loop, test.ShouldBeFalse)

	test.That(t, Config{Rate: 0}.Validate(), test.ShouldNotBeNil)
	test.That(t, Config{Rate: -1}.Validate(), test.ShouldNotBeNil)
	test.That(t, Config{Rate: 0.25}.Validate(), test.ShouldBeNil)
}
