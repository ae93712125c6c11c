package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	app "github.com/okian/handoff/internal/app"
	"github.com/okian/handoff/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	convey.Convey("Given the handoff command", t, func() {
		ctx := context.Background()
		var stdout, stderr bytes.Buffer

		convey.Convey("When run with one producer, one consumer and -print", func() {
			code := run(ctx, []string{"-items", "5", "-print"}, &stdout, &stderr)

			convey.Convey("Then it should succeed and print 1..N", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(stdout.String(), convey.ShouldEqual, "[1,2,3,4,5]\n")
			})
		})

		convey.Convey("When run with several producers and consumers", func() {
			code := run(ctx, []string{
				"-producers", "3", "-consumers", "2", "-capacity", "1", "-items", "50", "-print",
			}, &stdout, &stderr)

			convey.Convey("Then it should print one line per consumer with producer-tagged items", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
				convey.So(lines, convey.ShouldHaveLength, 2)
				convey.So(stdout.String(), convey.ShouldContainSubstring, "p0#")
			})
		})

		convey.Convey("When run without -print", func() {
			code := run(ctx, []string{"-items", "5"}, &stdout, &stderr)

			convey.Convey("Then stdout should stay empty and the logs go to stderr", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(stdout.String(), convey.ShouldBeEmpty)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "handoff complete")
			})
		})

		convey.Convey("When the configuration comes from the environment", func() {
			_ = os.Setenv("HANDOFF_PRODUCERS", "2")
			_ = os.Setenv("HANDOFF_ITEMS_PER_PRODUCER", "4")
			_ = os.Setenv("HANDOFF_LOG_FORMAT", "json")
			defer func() {
				_ = os.Unsetenv("HANDOFF_PRODUCERS")
				_ = os.Unsetenv("HANDOFF_ITEMS_PER_PRODUCER")
				_ = os.Unsetenv("HANDOFF_LOG_FORMAT")
			}()
			code := run(ctx, []string{"-print"}, &stdout, &stderr)

			convey.Convey("Then it should be used", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(strings.Count(stdout.String(), "#"), convey.ShouldEqual, 8)
				convey.So(stderr.String(), convey.ShouldContainSubstring, `"msg":"handoff complete"`)
			})
		})

		convey.Convey("When the ops server is enabled", func() {
			code := run(ctx, []string{"-items", "20", "-metrics-addr", "127.0.0.1:0"}, &stdout, &stderr)

			convey.Convey("Then the run still succeeds and the server is shut down", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "starting ops server")
			})
		})

		convey.Convey("When the run exceeds its timeout", func() {
			_ = os.Setenv("HANDOFF_RUN_TIMEOUT", "20ms")
			defer func() { _ = os.Unsetenv("HANDOFF_RUN_TIMEOUT") }()
			code := run(ctx, []string{"-producers", "2", "-items", "10000000"}, &stdout, &stderr)

			convey.Convey("Then it should fail", func() {
				convey.So(code, convey.ShouldEqual, exitFailure)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "run aborted")
			})
		})

		convey.Convey("When a flag overrides an invalid env value", func() {
			_ = os.Setenv("HANDOFF_CAPACITY", "0")
			defer func() { _ = os.Unsetenv("HANDOFF_CAPACITY") }()
			code := run(ctx, []string{"-capacity", "4", "-items", "5"}, &stdout, &stderr)

			convey.Convey("Then the flag value is validated and the run succeeds", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
			})
		})

		convey.Convey("When an invalid env value is not overridden", func() {
			_ = os.Setenv("HANDOFF_CAPACITY", "0")
			defer func() { _ = os.Unsetenv("HANDOFF_CAPACITY") }()
			code := run(ctx, []string{"-items", "5"}, &stdout, &stderr)

			convey.Convey("Then validation rejects it", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "capacity")
			})
		})

		convey.Convey("When given an unknown flag", func() {
			code := run(ctx, []string{"-nope"}, &stdout, &stderr)

			convey.Convey("Then it should report a usage error", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
			})
		})

		convey.Convey("When given a zero capacity", func() {
			code := run(ctx, []string{"-capacity", "0"}, &stdout, &stderr)

			convey.Convey("Then validation should reject it", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "capacity")
			})
		})

		convey.Convey("When given stray arguments", func() {
			code := run(ctx, []string{"extra"}, &stdout, &stderr)

			convey.Convey("Then it should report a usage error", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "unexpected arguments")
			})
		})
	})
}

func TestParseFlags(t *testing.T) {
	convey.Convey("Given a subset of flags", t, func() {
		var stderr bytes.Buffer
		f, set, err := parseFlags([]string{"-consumers", "4", "-print"}, &stderr)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then only the given flags are marked as set", func() {
			convey.So(set, convey.ShouldResemble, map[string]bool{"consumers": true, "print": true})
			convey.So(f.consumers, convey.ShouldEqual, 4)
			convey.So(f.print, convey.ShouldBeTrue)
		})
	})
}

func TestPrintStreams(t *testing.T) {
	convey.Convey("Given a report with two consumer streams", t, func() {
		var out bytes.Buffer
		printStreams(&out, &app.Report{
			Producers: 2,
			Streams: [][]model.Item{
				{{Producer: 0, Seq: 1}, {Producer: 1, Seq: 1}},
				{},
			},
		})

		convey.So(out.String(), convey.ShouldEqual, "[p0#1,p1#1]\n[]\n")
	})
}
