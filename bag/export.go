package bag

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// LoadBag reads the full contents of a bag into a gobag structure so its
// messages can be exported. Metadata-only callers should prefer Reader,
// which streams instead of holding the whole bag in memory.
func LoadBag(path string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open bag file %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read bag %q", path)
	}
	return rb, nil
}

// ExportTopicsJSON writes the bag's messages into dir as JSON-line files,
// one file per topic. A zero start or end time disables time filtering; an
// empty topics slice exports every topic.
func ExportTopicsJSON(rb *rosbag.RosBag, dir string, startTime, endTime int64, topics []string) error {
	if err := rb.WriteTopicsJSON(dir, startTime, endTime, topics); err != nil {
		return errors.Wrapf(err, "error while exporting bag to JSON")
	}
	return nil
}

// MessagesForTopic decodes every message recorded on the given topic.
func MessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "unable to decode messages for topic %s", topic)
	}

	msgs := rb.TopicsAsJSON[topicKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("topic %s has no messages", topic)
	}
	return decodeJSONLines(msgs)
}

// topicKey normalizes a topic name the way gobag keys its per-topic
// buffers: leading slash dropped, inner slashes underscored, lowercased.
func topicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

func decodeJSONLines(r io.Reader) ([]map[string]interface{}, error) {
	decoder := json.NewDecoder(r)
	var all []map[string]interface{}
	for {
		message := map[string]interface{}{}
		if err := decoder.Decode(&message); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		all = append(all, message)
	}
	return all, nil
}
