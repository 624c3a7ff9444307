package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/bodgit/fd1094/config"
	"github.com/bodgit/fd1094/database"
	"github.com/bodgit/fd1094/fd1094"
	"github.com/bodgit/fd1094/keysearch"
	"github.com/bodgit/fd1094/romset"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

type tool struct {
	cfg *config.Config
	log *logrus.Logger
	db  *database.Database
}

func (t *tool) before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("database") {
		cfg.Database = c.String("database")
	}
	if c.IsSet("workers") {
		cfg.Search.Workers = c.Int("workers")
	}

	if t.log, err = cfg.NewLogger(os.Stderr); err != nil {
		return cli.Exit(err, 1)
	}
	t.cfg = cfg

	if cfg.Database != "" {
		if t.db, err = database.NewDatabase(cfg.Database); err != nil {
			return cli.Exit(err, 1)
		}
	}

	return nil
}

func (t *tool) after(c *cli.Context) error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *tool) openSet(c *cli.Context) (*romset.Set, error) {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	s, err := romset.Open(c.Args().First(), t.cfg.Cache.PageWords, c.Args().Tail()...)
	if err != nil && !errors.Is(err, romset.ErrNoKey) {
		return nil, err
	}

	if c.IsSet("key") {
		f, err := os.Open(c.String("key"))
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if s.Key, err = romset.ReadKey(f); err != nil {
			return nil, err
		}
	}

	t.log.WithFields(logrus.Fields{
		"name":  s.Name,
		"words": len(s.Program),
		"key":   s.Key != nil,
	}).Debug("Opened ROM set")

	return s, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func parseWords(s string) ([]uint16, error) {
	var words []uint16
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 16, 16)
		if err != nil {
			return nil, err
		}
		words = append(words, uint16(v))
	}
	return words, nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(true)
	return table
}

func writeKey(file string, key *fd1094.Key) error {
	b, err := key.MarshalBinary()
	if err != nil {
		return err
	}
	return ioutil.WriteFile(file, b, 0644)
}

func (t *tool) info(c *cli.Context) error {
	s, err := t.openSet(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	p := s.Open(t.cfg.Cache.PageWords)
	sp := uint32(p.Vector(0))<<16 | uint32(p.Vector(1))
	pc := uint32(p.Vector(2))<<16 | uint32(p.Vector(3))

	table := newTable(os.Stdout)

	table.Append([]string{"Name:", s.Name})
	table.Append([]string{"Size:", fmt.Sprintf("0x%x", len(s.Program)*2)})
	if s.Key != nil {
		g := s.Key.Global()
		table.Append([]string{"Global key:", g.String()})
		table.Append([]string{"IRQ state:", fmt.Sprintf("0x%02x", g[0])})
	} else {
		table.Append([]string{"Global key:", "-"})
	}
	table.Append([]string{"Initial SP:", fmt.Sprintf("0x%08x", sp)})
	table.Append([]string{"Initial PC:", fmt.Sprintf("0x%08x", pc)})

	if t.db != nil {
		if k, ok, err := t.db.FindKey(s.Name); err != nil {
			return cli.Exit(err, 1)
		} else if ok {
			table.Append([]string{"Known key:", fmt.Sprintf("%s SP 0x%08x PC 0x%08x", k.Global, k.SP, k.PC)})
		}
	}

	table.Render()

	if c.Bool("save") {
		if t.db == nil || s.Key == nil {
			return cli.Exit("saving needs a database and a key", 1)
		}
		if err := t.db.AddKey(database.Key{Name: s.Name, Global: s.Key.Global(), SP: sp, PC: pc}); err != nil {
			return cli.Exit(err, 1)
		}
	}

	if c.Bool("verbose") && t.db != nil {
		fmt.Println()

		matches, err := t.db.Matches(s.Name)
		if err != nil {
			return cli.Exit(err, 1)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetColumnSeparator("")

		table.SetHeader([]string{"ID", "Kind", "Key", "Generator", "Seed", "PC"})

		for _, m := range matches {
			if m.Generator != nil {
				table.Append([]string{strconv.FormatInt(m.ID, 10), m.Kind, m.Global.String(), m.Generator.String(), fmt.Sprintf("0x%06x", m.Seed), fmt.Sprintf("0x%06x", m.BasePC)})
			} else {
				table.Append([]string{strconv.FormatInt(m.ID, 10), m.Kind, m.Global.String(), "-", "-", "-"})
			}
		}

		table.Render()
	}

	return nil
}

func (t *tool) decrypt(c *cli.Context) error {
	s, err := t.openSet(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	p := s.Open(t.cfg.Cache.PageWords)
	if c.IsSet("state") {
		p.Observe(fd1094.SelectState(uint8(c.Uint("state"))))
	}
	if c.Bool("irq") {
		p.Observe(fd1094.EnterIRQ())
	}

	file := c.String("output")
	if file == "" {
		file = s.Name + ".bin"
	}

	f, err := os.Create(file)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	b := make([]byte, 2)
	for i := range s.Program {
		binary.BigEndian.PutUint16(b, p.Fetch(uint32(i)))
		if _, err := w.Write(b); err != nil {
			return cli.Exit(err, 1)
		}
	}

	if err := w.Flush(); err != nil {
		return cli.Exit(err, 1)
	}

	t.log.WithField("file", file).Info("Wrote decrypted program")

	return nil
}

func (t *tool) gkey(c *cli.Context) error {
	s, err := t.openSet(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if len(s.Program) < 4 {
		return cli.Exit("program too short", 1)
	}

	var args [3]uint32
	for i, name := range []string{"sp", "pc", "start"} {
		if args[i], err = parseUint32(c.String(name)); err != nil {
			return cli.Exit(fmt.Errorf("%s: %w", name, err), 1)
		}
	}

	var encrypted [4]uint16
	copy(encrypted[:], s.Program)

	v := keysearch.NewVectors(encrypted, args[0], args[1])
	if c.IsSet("mask") {
		mask, err := parseUint32(c.String("mask"))
		if err != nil {
			return cli.Exit(err, 1)
		}
		v.Mask[2], v.Mask[3] = uint16(mask>>16), uint16(mask)
	}

	searcher := keysearch.New(t.cfg.Search.Workers, t.log)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")

	table.SetHeader([]string{"Key", "SP", "PC"})

	n := 0
	err = searcher.GlobalKeys(c.Context, v, args[2], func(m keysearch.GlobalKeyMatch) bool {
		table.Append([]string{m.Key.String(), fmt.Sprintf("%04x%04x", m.Decoded[0], m.Decoded[1]), fmt.Sprintf("%04x%04x", m.Decoded[2], m.Decoded[3])})
		if t.db != nil {
			if _, err := t.db.AddMatch(database.Match{Game: s.Name, Kind: database.KindGlobalKey, Global: m.Key}); err != nil {
				t.log.WithError(err).Error("Unable to record match")
			}
		}
		n++
		return c.Bool("all") || n < c.Int("limit")
	})

	table.Render()

	if err != nil {
		return cli.Exit(err, 1)
	}

	if n == 0 {
		return cli.Exit("no global key found", 1)
	}

	return nil
}

func (t *tool) seed(c *cli.Context) error {
	s, err := t.openSet(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if s.Key == nil {
		return cli.Exit(romset.ErrNoKey, 1)
	}

	addr, err := parseUint32(c.String("address"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	length := c.Int("length")
	if addr < 4 || int(addr)+length > fd1094.KeySize {
		return cli.Exit("key range out of bounds", 1)
	}

	m, ok := keysearch.IsValidSequence(s.Key[addr : int(addr)+length])
	if !ok {
		return cli.Exit("key bytes don't come from a known generator", 1)
	}

	base := keysearch.ReconstructBaseSeed(m.Generator, addr, m.Seed)

	table := newTable(os.Stdout)
	table.Append([]string{"Generator:", m.Generator.String()})
	table.Append([]string{"Seed:", fmt.Sprintf("0x%06x", m.Seed)})
	table.Append([]string{"Base seed:", fmt.Sprintf("0x%06x", base)})

	generated := new(fd1094.Key)
	generated.SetGlobal(s.Key.Global())
	keysearch.Generate(generated, m.Generator, base)

	mismatched := 0
	for i := 4; i < fd1094.KeySize; i++ {
		if generated[i]&0x3f != s.Key[i]&0x3f {
			mismatched++
		}
	}
	table.Append([]string{"Mismatched bytes:", strconv.Itoa(mismatched)})

	table.Render()

	if t.db != nil {
		g := m.Generator
		if _, err := t.db.AddMatch(database.Match{Game: s.Name, Kind: database.KindSequence, Global: s.Key.Global(), Generator: &g, Seed: base, BasePC: 4}); err != nil {
			return cli.Exit(err, 1)
		}
	}

	if file := c.String("output"); file != "" {
		if err := writeKey(file, generated); err != nil {
			return cli.Exit(err, 1)
		}
	}

	return nil
}

func (t *tool) sequence(c *cli.Context) error {
	s, err := t.openSet(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if s.Key == nil {
		return cli.Exit(romset.ErrNoKey, 1)
	}

	pc, err := parseUint32(c.String("pc"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	basePC := pc / 2

	words, err := parseWords(c.String("words"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	mask := make([]uint16, len(words))
	if c.IsSet("mask") {
		if mask, err = parseWords(c.String("mask")); err != nil {
			return cli.Exit(err, 1)
		}
	} else {
		for i := range mask {
			mask[i] = 0xffff
		}
	}

	if int(basePC)+len(words) > len(s.Program) {
		return cli.Exit("sequence runs past the end of the program", 1)
	}

	gk := fd1094.DeriveGlobalKeys(s.Key.Global(), uint8(c.Uint("state")))

	searcher := keysearch.New(t.cfg.Search.Workers, t.log)
	found, err := searcher.FindOpcodeSequence(c.Context, basePC, s.Key, gk, s.Program[basePC:], words, mask)
	if err != nil {
		return cli.Exit(err, 1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")

	table.SetHeader([]string{"Generator", "Seed", "Key bytes"})

	for _, m := range found {
		b := make([]string, len(m.Bytes))
		for i, x := range m.Bytes {
			b[i] = fmt.Sprintf("%02x", x)
		}
		table.Append([]string{m.Generator.String(), fmt.Sprintf("0x%06x", m.Seed), strings.Join(b, " ")})

		if t.db != nil {
			g := m.Generator
			if _, err := t.db.AddMatch(database.Match{Game: s.Name, Kind: database.KindSequence, Global: m.Global, Generator: &g, Seed: m.Seed, BasePC: basePC}); err != nil {
				return cli.Exit(err, 1)
			}
		}
	}

	table.Render()

	if len(found) == 0 {
		return cli.Exit("no key bytes decode the sequence", 1)
	}

	if file := c.String("output"); file != "" {
		if err := writeKey(file, s.Key); err != nil {
			return cli.Exit(err, 1)
		}
	}

	return nil
}

func (t *tool) keys(c *cli.Context) error {
	if t.db == nil {
		return cli.Exit("no database configured", 1)
	}

	keys, err := t.db.Keys()
	if err != nil {
		return cli.Exit(err, 1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")

	table.SetHeader([]string{"Name", "Key", "SP", "PC"})

	for _, k := range keys {
		table.Append([]string{k.Name, k.Global.String(), fmt.Sprintf("0x%08x", k.SP), fmt.Sprintf("0x%08x", k.PC)})
	}

	table.Render()

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "fd1094"
	app.Usage = "Sega FD1094 decryption and key recovery utility"
	app.Version = "1.0.0"

	t := new(tool)
	app.Before = t.before
	app.After = t.after

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "read configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log at `LEVEL`",
		},
		&cli.StringFlag{
			Name:  "database",
			Usage: "record keys and matches in `FILE`",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "search with `N` goroutines",
		},
	}

	keyFlag := &cli.StringFlag{
		Name:    "key",
		Aliases: []string{"k"},
		Usage:   "use the key in `FILE` instead of the one in the set",
	}

	app.Commands = []*cli.Command{
		{
			Name:        "info",
			Usage:       "Info on a ROM set",
			ArgsUsage:   "SET [PROGRAM...]",
			Description: "",
			Action:      t.info,
			Flags: []cli.Flag{
				keyFlag,
				&cli.BoolFlag{
					Name:    "verbose",
					Aliases: []string{"v"},
					Usage:   "list recorded matches",
				},
				&cli.BoolFlag{
					Name:  "save",
					Usage: "record the key and boot vectors in the database",
				},
			},
		},
		{
			Name:        "decrypt",
			Usage:       "Write the decrypted program of a ROM set",
			ArgsUsage:   "SET [PROGRAM...]",
			Description: "",
			Action:      t.decrypt,
			Flags: []cli.Flag{
				keyFlag,
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "write to `FILE`",
				},
				&cli.UintFlag{
					Name:  "state",
					Usage: "decrypt in `STATE` instead of the reset state",
				},
				&cli.BoolFlag{
					Name:  "irq",
					Usage: "decrypt in IRQ mode",
				},
			},
		},
		{
			Name:        "gkey",
			Usage:       "Search for global keys that decode the boot vectors",
			ArgsUsage:   "SET [PROGRAM...]",
			Description: "",
			Action:      t.gkey,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "sp",
					Usage: "expected initial `SP`",
					Value: "0x00ffff00",
				},
				&cli.StringFlag{
					Name:     "pc",
					Usage:    "expected initial `PC`",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "mask",
					Usage: "only match the bits of the PC set in `MASK`",
				},
				&cli.StringFlag{
					Name:  "start",
					Usage: "start searching from `KEY`",
					Value: "0",
				},
				&cli.IntFlag{
					Name:  "limit",
					Usage: "stop after `N` keys",
					Value: 1,
				},
				&cli.BoolFlag{
					Name:  "all",
					Usage: "list every matching key",
				},
			},
		},
		{
			Name:        "seed",
			Usage:       "Recover the generator and seed of a key",
			ArgsUsage:   "SET [PROGRAM...]",
			Description: "",
			Action:      t.seed,
			Flags: []cli.Flag{
				keyFlag,
				&cli.StringFlag{
					Name:  "address",
					Usage: "analyse key bytes from `INDEX`",
					Value: "4",
				},
				&cli.IntFlag{
					Name:  "length",
					Usage: "analyse `N` key bytes",
					Value: 16,
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "write the regenerated key to `FILE`",
				},
			},
		},
		{
			Name:        "sequence",
			Usage:       "Recover key bytes from a known opcode sequence",
			ArgsUsage:   "SET [PROGRAM...]",
			Description: "",
			Action:      t.sequence,
			Flags: []cli.Flag{
				keyFlag,
				&cli.StringFlag{
					Name:     "pc",
					Usage:    "byte address of the first word",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "words",
					Usage:    "comma separated hex `WORDS` expected",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "mask",
					Usage: "comma separated hex `MASKS` of the bits to match",
				},
				&cli.UintFlag{
					Name:  "state",
					Usage: "the code runs in `STATE`",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "write the updated key to `FILE`",
				},
			},
		},
		{
			Name:        "keys",
			Usage:       "List known keys",
			Description: "",
			Action:      t.keys,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
