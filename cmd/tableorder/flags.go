package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/internal/tables"
)

// line is one id:qty pair from the command line.
type line struct {
	ID       int64
	Quantity int
}

// lineList collects repeatable -dish/-set flags.
type lineList []line

func (l *lineList) String() string {
	parts := make([]string, 0, len(*l))
	for _, item := range *l {
		parts = append(parts, fmt.Sprintf("%d:%d", item.ID, item.Quantity))
	}
	return strings.Join(parts, ",")
}

func (l *lineList) Set(value string) error {
	item, err := parseLine(value)
	if err != nil {
		return err
	}
	*l = append(*l, item)
	return nil
}

// parseLine reads "id" or "id:qty". A bare id means one.
func parseLine(value string) (line, error) {
	rawID, rawQty, hasQty := strings.Cut(strings.TrimSpace(value), ":")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return line{}, fmt.Errorf("invalid id in %q", value)
	}
	qty := 1
	if hasQty {
		qty, err = strconv.Atoi(rawQty)
		if err != nil || qty <= 0 {
			return line{}, fmt.Errorf("invalid quantity in %q", value)
		}
	}
	return line{ID: id, Quantity: qty}, nil
}

type options struct {
	identity orders.Identity
	table    tables.Identity
	dishes   lineList
	sets     lineList
	topping  string
	takeAway bool
	chili    int
	dryRun   bool
	logout   bool
	wait     int
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		opts       options
		guestID    int64
		userID     int64
		tableToken string
		joinURL    string
	)

	fs := flag.NewFlagSet("tableorder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Int64Var(&guestID, "guest-id", 0, "order as this guest")
	fs.Int64Var(&userID, "user-id", 0, "order as this signed-in user")
	fs.StringVar(&opts.identity.Name, "name", "", "name printed on the order")
	fs.StringVar(&opts.identity.Email, "email", "", "email of the person ordering")
	fs.IntVar(&opts.table.Number, "table", 0, "table number")
	fs.StringVar(&tableToken, "table-token", "", "table token from the table QR code")
	fs.StringVar(&joinURL, "join-url", "", "join link from a table QR code; overrides -table and -table-token")
	fs.Var(&opts.dishes, "dish", "dish as id:qty (repeatable)")
	fs.Var(&opts.sets, "set", "set as id:qty (repeatable)")
	fs.StringVar(&opts.topping, "topping", "", "free-text note for the kitchen")
	fs.BoolVar(&opts.takeAway, "takeaway", false, "take the order away")
	fs.IntVar(&opts.chili, "chili", 0, "chili level 0-10")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the summary without placing the order")
	fs.BoolVar(&opts.logout, "logout", false, "sign out when done: drop the saved order and the realtime token")
	fs.IntVar(&opts.wait, "wait", 3, "seconds to wait for the realtime connection before placing")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch {
	case guestID > 0 && userID > 0:
		return options{}, fmt.Errorf("use either -guest-id or -user-id, not both")
	case guestID > 0:
		opts.identity.IsGuest = true
		opts.identity.GuestID = guestID
	case userID > 0:
		opts.identity.UserID = userID
	}

	opts.table.Token = tableToken
	if joinURL != "" {
		table, err := tables.ParseJoinURL(joinURL)
		if err != nil {
			return options{}, err
		}
		opts.table = table
	}
	if len(opts.dishes) == 0 && len(opts.sets) == 0 {
		return options{}, fmt.Errorf("add at least one -dish or -set")
	}
	if opts.wait < 0 {
		opts.wait = 0
	}
	return opts, nil
}
