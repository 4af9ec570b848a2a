package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// catalogue is the YAML import format. Challenges are ordered as listed.
type catalogue struct {
	Challenges []catalogueEntry `yaml:"challenges"`
}

type catalogueEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Points      int    `yaml:"points"`
	Difficulty  string `yaml:"difficulty"`
	Flag        string `yaml:"flag"`
	Hint        string `yaml:"hint"`
	ImageRef    string `yaml:"image"`
	Inactive    bool   `yaml:"inactive"`
}

func parseCatalogue(r io.Reader) ([]catalogueEntry, error) {
	var c catalogue
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalogue: %w", err)
	}
	if len(c.Challenges) == 0 {
		return nil, errors.New("catalogue has no challenges")
	}
	ids := make(map[string]bool, len(c.Challenges))
	for i, e := range c.Challenges {
		switch {
		case strings.TrimSpace(e.ID) == "":
			return nil, fmt.Errorf("challenge %d: id is required", i+1)
		case strings.ContainsAny(e.ID, "/*"):
			return nil, fmt.Errorf("challenge %q: id may not contain / or *", e.ID)
		case ids[e.ID]:
			return nil, fmt.Errorf("challenge %q: duplicate id", e.ID)
		case strings.TrimSpace(e.Title) == "":
			return nil, fmt.Errorf("challenge %q: title is required", e.ID)
		case strings.TrimSpace(e.Flag) == "":
			return nil, fmt.Errorf("challenge %q: flag is required", e.ID)
		case e.Points <= 0:
			return nil, fmt.Errorf("challenge %q: points must be positive", e.ID)
		}
		ids[e.ID] = true
	}
	return c.Challenges, nil
}

var importCmd = &cobra.Command{
	Use:   "import <catalogue.yaml>",
	Short: "Import a challenge catalogue",
	Long: `Import challenges from a YAML catalogue. Flags are hashed before they are
stored. Challenges are sequenced in file order. Existing IDs are skipped
unless --replace is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		entries, err := parseCatalogue(f)
		if err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")

		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		base := time.Now().UTC()
		out := cmd.OutOrStdout()
		for i, entry := range entries {
			hash, err := e.hasher.Hash(strings.TrimSpace(entry.Flag))
			if err != nil {
				return err
			}
			c := ctf.Challenge{
				Title:       entry.Title,
				Description: entry.Description,
				Category:    entry.Category,
				Points:      entry.Points,
				Difficulty:  entry.Difficulty,
				FlagHash:    hash,
				Active:      !entry.Inactive,
				Hint:        entry.Hint,
				ImageRef:    entry.ImageRef,
				CreatedAt:   base.Add(time.Duration(i) * time.Millisecond),
			}
			if replace {
				if err := e.store.Put(ctx, store.Challenges, entry.ID, c); err != nil {
					return fmt.Errorf("writing %s: %w", entry.ID, err)
				}
				fmt.Fprintf(out, "wrote   %s\n", entry.ID)
				continue
			}
			_, err = e.store.Create(ctx, store.Challenges, entry.ID, c)
			if errors.Is(err, store.ErrExists) {
				fmt.Fprintf(out, "skipped %s (exists)\n", entry.ID)
				continue
			}
			if err != nil {
				return fmt.Errorf("creating %s: %w", entry.ID, err)
			}
			fmt.Fprintf(out, "created %s\n", entry.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("replace", false, "overwrite challenges that already exist")
}
