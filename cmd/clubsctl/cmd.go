package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"clubadmin/internal/dashboard"
	"clubadmin/internal/model"
	"clubadmin/internal/session"
	"clubadmin/internal/stats"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out    io.Writer
	auth   session.Authenticator
	svc    *dashboard.Service
	loc    *time.Location
	now    func() time.Time
	getenv func(string) string
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  period -name TOKEN [-start YYYY-MM-DD] [-end YYYY-MM-DD] - print the bounds of a period")
	fmt.Fprintln(cli.out, "  color -used LIST [-seed N] - pick a category color not in the comma separated LIST")
	fmt.Fprintln(cli.out, "  login -username USERNAME - log in to the clubs API and print the token")
	fmt.Fprintln(cli.out, "  report [-period TOKEN] - print the dashboard overview (needs CLUBADMIN_TOKEN)")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "period":
		fs := cli.flagSet("period")
		name := fs.String("name", "month", "Period: today, week, month, 3months, 6months, year, all or custom.")
		start := fs.String("start", "", "Custom period start (YYYY-MM-DD).")
		end := fs.String("end", "", "Custom period end (YYYY-MM-DD).")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		return cli.period(*name, *start, *end)
	case "color":
		fs := cli.flagSet("color")
		used := fs.String("used", "", "Comma separated colors already taken.")
		seed := fs.Uint64("seed", 0, "Random seed; 0 picks one from the clock.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		return cli.color(*used, *seed)
	case "login":
		fs := cli.flagSet("login")
		uname := fs.String("username", "", "Administrator username. The password will be prompted next.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *uname == "" {
			fs.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			fs.Usage()
			return errHelp
		}
		return cli.login(*uname, string(pwd))
	case "report":
		fs := cli.flagSet("report")
		period := fs.String("period", "month", "Period to report on.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		return cli.report(*period)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) period(name, start, end string) error {
	token, err := stats.ParseToken(name)
	if err != nil {
		return err
	}
	var custom stats.Range
	if start != "" {
		t, err := stats.ParseDate(start, cli.loc)
		if err != nil {
			return err
		}
		custom.Start = &t
	}
	if end != "" {
		t, err := stats.ParseDate(end, cli.loc)
		if err != nil {
			return err
		}
		custom.End = &t
	}
	p, err := stats.Resolve(token, cli.now().In(cli.loc), custom)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s\t%s\t%s\n", p.Token, orOpen(p.StartDate()), orOpen(p.EndDate()))
	return nil
}

func orOpen(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (cli *commandLine) color(used string, seed uint64) error {
	if seed == 0 {
		seed = uint64(cli.now().UnixNano())
	}
	var taken []string
	for _, c := range strings.Split(used, ",") {
		if c = strings.TrimSpace(c); c != "" {
			taken = append(taken, c)
		}
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	fmt.Fprintln(cli.out, stats.AssignColor(taken, rng))
	return nil
}

func (cli *commandLine) login(username, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := cli.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "logged in as %s (%s)\n", res.User.Username, res.User.Role)
	fmt.Fprintln(cli.out, res.Token)
	return nil
}

func (cli *commandLine) report(period string) error {
	token := cli.getenv("CLUBADMIN_TOKEN")
	if token == "" {
		return errors.New("CLUBADMIN_TOKEN is not set; run login first")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	sess := session.Session{UpstreamToken: token, User: model.User{ID: "cli"}}
	ov, err := cli.svc.Overview(ctx, sess, dashboard.PeriodQuery{Period: period})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\t%s\t%s .. %s\n", ov.Period.Token, orOpen(ov.Period.StartDate), orOpen(ov.Period.EndDate))
	fmt.Fprintf(tw, "Students\t%d\tbusy %d (%.1f%%), not busy %d\n", ov.Students.Total, ov.Students.Busy, ov.Students.BusyPercentage, ov.Students.NotBusy)
	fmt.Fprintf(tw, "Clubs\t%d\t%d/%d seats (%.1f%%)\n", ov.Clubs.Clubs, ov.Clubs.TotalStudents, ov.Clubs.TotalCapacity, ov.Clubs.FillPercentage)
	fmt.Fprintf(tw, "Attendance\t%d sessions\taverage %.1f%%\n", ov.Attendance.Sessions, ov.Attendance.Average)
	for _, pt := range ov.Trend {
		fmt.Fprintf(tw, "  %s\t%d sessions\t%.1f%%\n", pt.Date, pt.SessionsCount, pt.Percentage)
	}
	for i, s := range ov.TopStudents {
		fmt.Fprintf(tw, "Top student %d\t%s\t%.1f%% (%d/%d)\n", i+1, s.Name, s.Rate, s.Present, s.Total)
	}
	for i, c := range ov.TopClubs {
		fmt.Fprintf(tw, "Top club %d\t%s\t%d students\n", i+1, c.Name, c.Students)
	}
	return tw.Flush()
}
