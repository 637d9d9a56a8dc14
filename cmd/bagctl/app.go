package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edaniels/golog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/bagctl/bag"
	"go.viam.com/bagctl/rosproc"
	"go.viam.com/bagctl/session"
)

const (
	flagTopics = "topics"
	flagRate   = "rate"
	flagLoop   = "loop"
	flagClock  = "clock"
	flagStart  = "start"
	flagDir    = "dir"
)

func newApp(logger golog.Logger) *cli.App {
	return &cli.App{
		Name:            "bagctl",
		Usage:           "inspect, play back, record, and filter ROS bag files",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print a bag's time bounds and topics",
				ArgsUsage: "<bag>",
				Action:    infoAction,
			},
			{
				Name:      "play",
				Usage:     "play a bag back until interrupted",
				ArgsUsage: "<bag>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  flagTopics,
						Usage: "restrict playback to these topics",
					},
					&cli.Float64Flag{
						Name:  flagRate,
						Value: 1.0,
						Usage: "playback rate multiplier",
					},
					&cli.BoolFlag{
						Name:  flagLoop,
						Usage: "loop playback",
					},
					&cli.BoolFlag{
						Name:  flagClock,
						Value: true,
						Usage: "publish the clock topic during playback",
					},
					&cli.DurationFlag{
						Name:  flagStart,
						Usage: "position to start playback from",
					},
				},
				Action: func(c *cli.Context) error {
					return playAction(c, logger)
				},
			},
			{
				Name:      "record",
				Usage:     "record the given live topics until interrupted",
				ArgsUsage: "<topic>...",
				Action: func(c *cli.Context) error {
					return recordAction(c, logger)
				},
			},
			{
				Name:      "filter",
				Usage:     "rewrite a bag keeping only the selected topics",
				ArgsUsage: "<src> <dst>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  flagTopics,
						Usage: "topics to keep (defaults to all)",
					},
				},
				Action: func(c *cli.Context) error {
					return filterAction(c, logger)
				},
			},
			{
				Name:      "export",
				Usage:     "dump a bag's messages as per-topic JSON files",
				ArgsUsage: "<bag>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagDir,
						Value: ".",
						Usage: "directory to write JSON files into",
					},
					&cli.StringSliceFlag{
						Name:  flagTopics,
						Usage: "restrict the export to these topics",
					},
				},
				Action: exportAction,
			},
			{
				Name:      "messages",
				Usage:     "print one topic's recorded messages as JSON lines",
				ArgsUsage: "<bag> <topic>",
				Action:    messagesAction,
			},
		},
	}
}

func infoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one bag path")
	}
	info, err := bag.NewReader().ReadInfo(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "begin    %s\n", info.Begin.Format(time.RFC3339Nano))
	fmt.Fprintf(c.App.Writer, "end      %s\n", info.End.Format(time.RFC3339Nano))
	fmt.Fprintf(c.App.Writer, "duration %s\n", info.Duration())

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"#", "Topic", "Type"})
	for i, topic := range info.Topics {
		t.AppendRow(table.Row{i + 1, topic.Name, topic.Type})
	}
	t.Render()
	return nil
}

func playAction(c *cli.Context, logger golog.Logger) (err error) {
	if c.NArg() != 1 {
		return errors.New("expected exactly one bag path")
	}

	launcher := rosproc.NewLauncher(logger)
	defer func() {
		err = multierr.Combine(err, launcher.Close())
	}()

	ctrl := session.NewController(bag.NewReader(), launcher, logger)
	if err := ctrl.SetConfig(session.Config{
		Rate:         c.Float64(flagRate),
		Loop:         c.Bool(flagLoop),
		PublishClock: c.Bool(flagClock),
	}); err != nil {
		return err
	}
	if err := ctrl.Open(c.Context, c.Args().First()); err != nil {
		return err
	}
	if err := restrictSelection(ctrl.SetAllPlay, ctrl.SetPlayTopic, c.StringSlice(flagTopics)); err != nil {
		return err
	}
	ctrl.SetPosition(c.Duration(flagStart))

	if err := ctrl.StartPlay(c.Context, false); err != nil {
		return err
	}
	logger.Infow("playing; interrupt to stop", "bag", c.Args().First())
	<-c.Context.Done()
	ctrl.StopPlay(context.WithoutCancel(c.Context))
	return nil
}

func recordAction(c *cli.Context, logger golog.Logger) (err error) {
	if c.NArg() == 0 {
		return errors.New("expected at least one topic")
	}

	launcher := rosproc.NewLauncher(logger)
	defer func() {
		err = multierr.Combine(err, launcher.Close())
	}()

	ctrl := session.NewController(bag.NewReader(), launcher, logger)
	topics := make([]bag.TopicInfo, 0, c.NArg())
	for _, name := range c.Args().Slice() {
		topics = append(topics, bag.TopicInfo{Name: name})
	}
	ctrl.OnTopicSnapshot(topics)

	if err := ctrl.StartRecord(c.Context); err != nil {
		return err
	}
	logger.Infow("recording; interrupt to stop", "topics", c.NArg())
	<-c.Context.Done()
	ctrl.StopRecord(context.WithoutCancel(c.Context))
	return nil
}

func filterAction(c *cli.Context, logger golog.Logger) (err error) {
	if c.NArg() != 2 {
		return errors.New("expected a source and a destination path")
	}

	launcher := rosproc.NewLauncher(logger)
	defer func() {
		err = multierr.Combine(err, launcher.Close())
	}()

	ctrl := session.NewController(bag.NewReader(), launcher, logger)
	if err := ctrl.Open(c.Context, c.Args().Get(0)); err != nil {
		return err
	}
	if err := restrictSelection(ctrl.SetAllPlay, ctrl.SetPlayTopic, c.StringSlice(flagTopics)); err != nil {
		return err
	}
	return ctrl.Save(c.Context, c.Args().Get(1))
}

func exportAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one bag path")
	}
	rb, err := bag.LoadBag(c.Args().First())
	if err != nil {
		return err
	}
	return bag.ExportTopicsJSON(rb, c.String(flagDir), 0, 0, c.StringSlice(flagTopics))
}

func messagesAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("expected a bag path and a topic")
	}
	rb, err := bag.LoadBag(c.Args().Get(0))
	if err != nil {
		return err
	}
	msgs, err := bag.MessagesForTopic(rb, c.Args().Get(1))
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(c.App.Writer)
	for _, msg := range msgs {
		if err := encoder.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

// restrictSelection narrows an all-included selection down to the named
// topics. An empty list keeps everything included.
func restrictSelection(setAll func(bool), setTopic func(string, bool) bool, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	setAll(false)
	for _, name := range topics {
		if !setTopic(name, true) {
			return errors.Errorf("topic %q is not in the bag", name)
		}
	}
	return nil
}
