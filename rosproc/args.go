package rosproc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.viam.com/bagctl/session"
)

// PlayArgs builds the rosbag argument list for a playback run:
//
//	play <path> -q [--clock] -r <rate> -s <startSecs> [-l] --topics <names...> __name:=<token>
func PlayArgs(req session.PlayRequest) []string {
	args := []string{"play", req.Path, "-q"}
	if req.PublishClock {
		args = append(args, "--clock")
	}
	args = append(args, "-r", formatFloat(req.Rate))
	args = append(args, "-s", formatFloat(seconds(req.Start)))
	if req.Loop {
		args = append(args, "-l")
	}
	args = append(args, "--topics")
	args = append(args, req.Topics...)
	return append(args, "__name:="+req.Token)
}

// RecordArgs builds the rosbag argument list for a record run.
func RecordArgs(req session.RecordRequest) []string {
	args := []string{"record"}
	args = append(args, req.Topics...)
	return append(args, "__name:="+req.Token)
}

// FilterArgs builds the rosbag argument list rewriting req.Src into req.Dst.
func FilterArgs(req session.FilterRequest) []string {
	return []string{"filter", req.Src, req.Dst, FilterPredicate(req.Topics)}
}

// FilterPredicate builds the expression rosbag filter evaluates per message:
// an OR over the kept topic names.
func FilterPredicate(topics []string) string {
	parts := make([]string, 0, len(topics))
	for _, topic := range topics {
		parts = append(parts, fmt.Sprintf("topic == '%s'", topic))
	}
	return strings.Join(parts, " or ")
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
