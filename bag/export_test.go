package bag

import (
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestLoadBagMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.bag")
	rb, err := LoadBag(missing)
	test.That(t, rb, test.ShouldBeNil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to open bag file")
}

func TestTopicKey(t *testing.T) {
	test.That(t, topicKey("/imu"), test.ShouldEqual, "imu")
	test.That(t, topicKey("/camera/RGB"), test.ShouldEqual, "camera_rgb")
	test.That(t, topicKey("odom"), test.ShouldEqual, "odom")
}

func TestDecodeJSONLines(t *testing.T) {
	input := strings.NewReader(`{"seq": 1, "topic": "/imu"}
{"seq": 2, "topic": "/imu"}
`)
	msgs, err := decodeJSONLines(input)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msgs, test.ShouldHaveLength, 2)
	test.That(t, msgs[0]["seq"], test.ShouldEqual, float64(1))
	test.That(t, msgs[1]["seq"], test.ShouldEqual, float64(2))

	msgs, err = decodeJSONLines(strings.NewReader(""))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msgs, test.ShouldBeEmpty)

	_, err = decodeJSONLines(strings.NewReader(`{"seq": 1}
not json
`))
	test.That(t, err, test.ShouldNotBeNil)
}
