// Package bag reads the metadata a playback session needs out of ROS bag
// files: the recording's time bounds and its topic list.
package bag

import (
	"context"
	"io"
	"os"
	"time"

	rosbag "github.com/lherman-cs/go-rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrInvalidLog is returned when a bag reports a begin time after its end time.
var ErrInvalidLog = errors.New("bag begin time is after its end time")

// TopicInfo describes one named, typed channel of messages.
type TopicInfo struct {
	Name string
	Type string
}

// Info holds everything a session needs to know about an opened bag. It is
// replaced wholesale on every open and never mutated afterward.
type Info struct {
	Path   string
	Begin  time.Time
	End    time.Time
	Topics []TopicInfo
}

// Duration returns the time span covered by the recording.
func (i Info) Duration() time.Duration {
	return i.End.Sub(i.Begin)
}

// Validate checks the time bounds are ordered.
func (i Info) Validate() error {
	if i.End.Before(i.Begin) {
		return ErrInvalidLog
	}
	return nil
}

// A Reader provides the time bounds and topic list of a recorded bag.
type Reader interface {
	ReadInfo(ctx context.Context, path string) (Info, error)
}

type fileReader struct{}

// NewReader returns a Reader backed by the bag file format decoder.
func NewReader() Reader {
	return &fileReader{}
}

// ReadInfo streams through the bag once, collecting connection headers for
// the topic list and message timestamps for the begin/end bounds.
func (r *fileReader) ReadInfo(ctx context.Context, path string) (Info, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.Wrapf(err, "unable to open bag file %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	info := Info{Path: path}
	seen := map[string]bool{}
	decoder := rosbag.NewDecoder(f)
	for {
		if ctx.Err() != nil {
			return Info{}, ctx.Err()
		}
		record, err := decoder.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Info{}, errors.Wrapf(err, "unable to decode bag %q", path)
		}

		switch record := record.(type) {
		case *rosbag.RecordConnection:
			hdr, err := record.ConnectionHeader()
			if err != nil {
				return Info{}, errors.Wrapf(err, "unable to decode connection header in %q", path)
			}
			if seen[hdr.Topic] {
				continue
			}
			seen[hdr.Topic] = true
			info.Topics = append(info.Topics, TopicInfo{Name: hdr.Topic, Type: hdr.Type})
		case *rosbag.RecordMessageData:
			stamp, err := record.Time()
			if err != nil {
				return Info{}, errors.Wrapf(err, "unable to decode message time in %q", path)
			}
			if info.Begin.IsZero() || stamp.Before(info.Begin) {
				info.Begin = stamp
			}
			if info.End.IsZero() || stamp.After(info.End) {
				info.End = stamp
			}
		}
	}

	if err := info.Validate(); err != nil {
		return Info{}, err
	}
	return info, nil
}
