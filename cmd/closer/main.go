package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"closer/internal/calendar"
	"closer/internal/cmdlog"
	"closer/internal/config"
	"closer/internal/dates"
	"closer/internal/freeslot"
	"closer/internal/jobs"
	"closer/internal/metrics"
	"closer/internal/model"
	"closer/internal/store/friendstore"
	"closer/internal/suggest"
	"closer/internal/theme"
	"closer/internal/web"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "friends":
		cmdFriends()
	case "busy":
		cmdBusy()
	case "slots":
		cmdSlots()
	case "suggest":
		cmdSuggest()
	case "dates":
		cmdDates()
	case "record":
		cmdRecord()
	case "refresh":
		cmdRefresh()
	case "serve":
		cmdServe()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: closer <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./closer.yaml")
	fmt.Println("  friends     List, add, or remove friends")
	fmt.Println("  busy        Manage manual busy blocks")
	fmt.Println("  slots       Show free call slots over the horizon")
	fmt.Println("  suggest     Show who to call and when")
	fmt.Println("  dates       Show or add upcoming important dates")
	fmt.Println("  record      Record that you contacted a friend")
	fmt.Println("  refresh     Run one refresh of slots and suggestions")
	fmt.Println("  serve       Run the API server with periodic refresh")
}

func fatal(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}

func mustLoadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func mustOpenStore(cfg config.Config) *friendstore.DB {
	db, err := friendstore.Open(cfg.Storage.DBPath)
	if err != nil {
		fatal(err)
	}
	return db
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./closer.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fatal(err)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

// splitClockRange parses "HH:MM-HH:MM" into its two bounds.
func splitClockRange(s string) (string, string, error) {
	if s == "" {
		return "", "", nil
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected HH:MM-HH:MM, got %q", s)
	}
	return parts[0], parts[1], nil
}

func cmdFriends() {
	fs := flag.NewFlagSet("friends", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	add := fs.String("add", "", "add a friend with this name")
	phone := fs.String("phone", "", "phone number (for WhatsApp links)")
	tz := fs.String("tz", "", "IANA timezone, e.g. Asia/Tokyo")
	city := fs.String("city", "", "city, display only")
	cadence := fs.String("cadence", "monthly", "weekly|monthly|quarterly|yearly")
	priority := fs.String("priority", "", "high|medium|low")
	weekday := fs.String("weekday", "", "preferred weekday hours, HH:MM-HH:MM")
	weekend := fs.String("weekend", "", "preferred weekend hours, HH:MM-HH:MM")
	remove := fs.String("remove", "", "remove the friend with this id")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("friends", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		ctx := context.Background()
		now := time.Now()

		switch {
		case *add != "":
			wdS, wdE, err := splitClockRange(*weekday)
			if err != nil {
				return err
			}
			weS, weE, err := splitClockRange(*weekend)
			if err != nil {
				return err
			}
			f, err := db.CreateFriend(ctx, model.Friend{
				Name: *add, Phone: *phone, Timezone: *tz, City: *city,
				Cadence: model.Cadence(*cadence), Priority: *priority,
				WeekdayStart: wdS, WeekdayEnd: wdE,
				WeekendStart: weS, WeekendEnd: weE,
			}, now)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", f.Name, f.ID)
			return nil
		case *remove != "":
			if err := db.DeleteFriend(ctx, *remove); err != nil {
				return err
			}
			fmt.Println("Removed", *remove)
			return nil
		default:
			friends, err := db.ListFriends(ctx)
			if err != nil {
				return err
			}
			for _, f := range friends {
				mark := ""
				if f.Overdue(now) {
					mark = " !"
				}
				local := suggest.FriendLocalTime(f, now)
				if local != "" {
					local = "  " + local
				}
				fmt.Printf("%s  %-20s %s%s  last: %s%s\n",
					f.ID, f.Name, f.Cadence, local, suggest.FormatLastContacted(f, now), mark)
			}
			return nil
		}
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdBusy() {
	fs := flag.NewFlagSet("busy", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	add := fs.String("add", "", "add a block on this day, YYYY-MM-DD")
	from := fs.String("from", "", "block start, HH:MM")
	to := fs.String("to", "", "block end, HH:MM")
	template := fs.Bool("template", false, "block -from/-to on every weekday for two weeks")
	remove := fs.String("remove", "", "remove the block with this id")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("busy", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		ctx := context.Background()
		now := time.Now()

		switch {
		case *template:
			if err := db.CreateWeekdayTemplate(ctx, *from, *to, now, jobs.HomeLocation(cfg)); err != nil {
				return err
			}
			fmt.Println("Weekday template created")
			return nil
		case *add != "":
			b, err := db.AddBusyBlock(ctx, *add, *from, *to, now)
			if err != nil {
				return err
			}
			fmt.Printf("Blocked %s %s-%s (%s)\n", b.Day, b.StartTime, b.EndTime, b.ID)
			return nil
		case *remove != "":
			if err := db.DeleteBusyBlock(ctx, *remove); err != nil {
				return err
			}
			fmt.Println("Removed", *remove)
			return nil
		default:
			blocks, err := db.ListBusyBlocks(ctx)
			if err != nil {
				return err
			}
			for _, b := range blocks {
				fmt.Printf("%s  %s %s-%s\n", b.ID, b.Day, b.StartTime, b.EndTime)
			}
			return nil
		}
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdSlots() {
	fs := flag.NewFlagSet("slots", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("slots", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		ctx := context.Background()
		loc := jobs.HomeLocation(cfg)
		now := time.Now().In(loc)

		busy, _ := calendar.FetchAll(ctx, now, now.AddDate(0, 0, cfg.Schedule.HorizonDays), jobs.SourcesFromConfig(cfg)...)
		manual, err := db.BusyIntervals(ctx, loc)
		if err != nil {
			return err
		}
		slots, err := freeslot.Compute(append(busy, manual...), now, cfg.Schedule.WorkWindow, cfg.Schedule.HorizonDays, cfg.Schedule.MinSlotMinutes)
		if err != nil {
			return err
		}
		for _, s := range slots {
			fmt.Printf("%s  %s - %s  (%d min)\n",
				s.Start.In(loc).Format("Mon Jan 2"),
				s.Start.In(loc).Format("15:04"),
				s.End.In(loc).Format("15:04"),
				s.DurationMinutes)
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("suggest", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		snap, err := jobs.RunRefreshOnce(context.Background(), db, cfg, jobs.SourcesFromConfig(cfg), time.Now())
		if err != nil {
			return err
		}
		if len(snap.Suggestions) == 0 {
			fmt.Println("No good call times found. Try widening the work window or preferred hours.")
			return nil
		}
		loc := jobs.HomeLocation(cfg)
		for _, s := range snap.Suggestions {
			line := fmt.Sprintf("%s  %s  %s", s.Best.CallerTime.In(loc).Format("Mon 15:04"), s.Friend.Name, s.Best.Reason)
			if s.FriendNow != "" {
				line += fmt.Sprintf("  (their time: %s)", s.Best.FriendTime.Format("Mon 15:04"))
			}
			if s.Best.Degraded {
				line += "  [timezone unknown]"
			}
			fmt.Println(line)
			if s.WhatsAppURL != "" {
				fmt.Println("   ", s.WhatsAppURL)
			}
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdDates() {
	fs := flag.NewFlagSet("dates", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	days := fs.Int("days", 30, "lookahead window in days")
	add := fs.String("add", "", "friend id to add a date for")
	label := fs.String("label", "", "date label, e.g. Birthday")
	month := fs.Int("month", 0, "month 1-12")
	day := fs.Int("day", 0, "day of month")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("dates", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		ctx := context.Background()

		if *add != "" {
			d, err := db.AddImportantDate(ctx, model.ImportantDate{
				FriendID: *add, Label: *label, Month: *month, Day: *day,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", d.Label, d.ID)
			return nil
		}
		friends, err := db.ListFriends(ctx)
		if err != nil {
			return err
		}
		all, err := db.ListImportantDates(ctx, "")
		if err != nil {
			return err
		}
		for _, u := range dates.Within(friends, all, time.Now(), *days) {
			when := "today"
			if u.DaysUntil == 1 {
				when = "tomorrow"
			} else if u.DaysUntil > 1 {
				when = fmt.Sprintf("in %d days", u.DaysUntil)
			}
			fmt.Printf("%s  %s — %s (%s)\n", u.On.Format("Jan 2"), u.FriendName, u.Date.Label, when)
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdRecord() {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	friend := fs.String("friend", "", "friend id")
	kind := fs.String("kind", "call", "contact kind: call|message")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("record", func() error {
		if *friend == "" {
			return fmt.Errorf("missing -friend")
		}
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		ctx := context.Background()
		now := time.Now()
		if err := db.MarkContacted(ctx, *friend, *kind, now); err != nil {
			return err
		}
		fmt.Println("Recorded", *kind, "with", *friend)
		if n, err := db.CountContactsWithin(ctx, now.AddDate(0, 0, -7), now.Add(time.Second)); err == nil {
			fmt.Printf("%d contacts in the last 7 days\n", n)
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("refresh", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()
		snap, err := jobs.RunRefreshOnce(context.Background(), db, cfg, jobs.SourcesFromConfig(cfg), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed: %d slots, %d suggestions\n", len(snap.Slots), len(snap.Suggestions))
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "./closer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])

	err := cmdlog.Run("serve", func() error {
		cfg := mustLoadConfig(*cfgPath)
		db := mustOpenStore(cfg)
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics.StartServer(cfg.Server.MetricsAddr)
		go func() {
			_ = jobs.RunRefreshLoop(ctx, db, cfg, jobs.SourcesFromConfig(cfg))
		}()

		theme.PrintBanner()
		srv := web.NewServer(db, cfg)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	})
	if err != nil {
		os.Exit(1)
	}
}
