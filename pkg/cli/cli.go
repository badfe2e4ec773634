// Package cli is a small flag parser with grouped -W/-F style toggles and
// terminal-aware help output.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     Value
	ArgName   string // empty for booleans
}

// A Group collects single-letter-prefixed toggles (-Wfoo, -Wno-foo) into one
// list flag plus a help section listing the recognized names.
type Group struct {
	Prefix  string
	Title   string
	Entries []GroupEntry
}

type GroupEntry struct {
	Name    string
	Usage   string
	Default bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	groups     []Group
	groupDest  map[string]*[]string
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
		groupDest:  make(map[string]*[]string),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) add(fl *Flag) {
	if _, ok := f.flags[fl.Name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", fl.Name))
	}
	f.flags[fl.Name] = fl
	if fl.Shorthand != "" {
		if _, ok := f.shorthands[fl.Shorthand]; ok {
			panic(fmt.Sprintf("shorthand redefined: %s", fl.Shorthand))
		}
		f.shorthands[fl.Shorthand] = fl
	}
}

func (f *FlagSet) String(p *string, name, shorthand, value, usage, argName string) {
	*p = value
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &stringValue{p}, ArgName: argName})
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &boolValue{p}})
}

// AddGroup registers a toggle group. Occurrences like -Wfoo or -Wno-foo are
// appended verbatim to *dest, in order, for the caller to interpret.
func (f *FlagSet) AddGroup(dest *[]string, prefix, title string, entries []GroupEntry) {
	*dest = []string{}
	f.groups = append(f.groups, Group{Prefix: prefix, Title: title, Entries: entries})
	f.groupDest[prefix] = dest
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		case strings.HasPrefix(arg, "--"):
			if err := f.setNamed(arg[2:], arguments, &i); err != nil {
				return err
			}
		default:
			if dest, ok := f.matchGroup(arg[1:]); ok {
				*dest = append(*dest, arg[1:])
				continue
			}
			if err := f.setShort(arg[1:], arguments, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *FlagSet) matchGroup(body string) (*[]string, bool) {
	for prefix, dest := range f.groupDest {
		if strings.HasPrefix(body, prefix) && len(body) > len(prefix) {
			return dest, true
		}
	}
	return nil, false
}

func (f *FlagSet) setNamed(body string, arguments []string, i *int) error {
	name, val, hasVal := strings.Cut(body, "=")
	fl, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	if hasVal {
		return fl.Value.Set(val)
	}
	if _, isBool := fl.Value.(*boolValue); isBool {
		return fl.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: --%s", name)
	}
	*i++
	return fl.Value.Set(arguments[*i])
}

func (f *FlagSet) setShort(body string, arguments []string, i *int) error {
	fl, ok := f.shorthands[body[:1]]
	if !ok {
		return fmt.Errorf("unknown flag: -%s", body)
	}
	if _, isBool := fl.Value.(*boolValue); isBool {
		if len(body) > 1 {
			return fmt.Errorf("flag -%s takes no argument", body[:1])
		}
		return fl.Value.Set("")
	}
	if len(body) > 1 {
		return fl.Value.Set(body[1:])
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", body)
	}
	*i++
	return fl.Value.Set(arguments[*i])
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Usage: %s %s\nRun '%s --help' for available options.\n", a.Name, a.Synopsis, a.Name)
		return err
	}
	if help {
		a.writeHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) writeHelp(w io.Writer) {
	width := terminalWidth()

	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		fmt.Fprintf(w, "\n%s\n", strings.Join(wrap(a.Description, width-2), "\n"))
	}
	if a.Repository != "" {
		fmt.Fprintf(w, "For more details refer to %s\n", a.Repository)
	}

	left := func(fl *Flag) string {
		s := "--" + fl.Name
		if fl.Shorthand != "" {
			s = "-" + fl.Shorthand + ", " + s
		}
		if fl.ArgName != "" {
			s += " <" + fl.ArgName + ">"
		}
		return s
	}

	var flags []*Flag
	widest := 0
	for _, fl := range a.FlagSet.flags {
		flags = append(flags, fl)
		if n := len(left(fl)); n > widest {
			widest = n
		}
	}
	for _, g := range a.FlagSet.groups {
		for _, e := range g.Entries {
			if n := len(g.Prefix + "no-" + e.Name); n > widest {
				widest = n
			}
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	fmt.Fprintf(w, "\nOptions\n")
	for _, fl := range flags {
		writeEntry(w, left(fl), fl.Usage, widest, width)
	}

	for _, g := range a.FlagSet.groups {
		fmt.Fprintf(w, "\n%s\n", g.Title)
		writeEntry(w, "-"+g.Prefix+"<name>", "Enable the named toggle", widest, width)
		writeEntry(w, "-"+g.Prefix+"no-<name>", "Disable the named toggle", widest, width)
		entries := make([]GroupEntry, len(g.Entries))
		copy(entries, g.Entries)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			mark := " "
			if e.Default {
				mark = "x"
			}
			writeEntry(w, e.Name, fmt.Sprintf("%s [%s]", e.Usage, mark), widest, width)
		}
	}
}

func writeEntry(w io.Writer, left, usage string, leftWidth, termWidth int) {
	avail := termWidth - leftWidth - 6
	if avail < 20 {
		avail = 20
	}
	lines := wrap(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(w, "  %-*s  %s\n", leftWidth, left, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "  %-*s  %s\n", leftWidth, "", line)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	return width
}

func wrap(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
