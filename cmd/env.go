package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/api"
	"github.com/Tiliavir/entrylog/internal/cache"
	"github.com/Tiliavir/entrylog/internal/export"
	"github.com/Tiliavir/entrylog/internal/model"
	"github.com/Tiliavir/entrylog/internal/normalize"
	"github.com/Tiliavir/entrylog/internal/sortopt"
	"github.com/Tiliavir/entrylog/internal/timecalc"
)

// viewFlags is the filter state shared by list, watch, export and delete.
type viewFlags struct {
	section string
	search  string
	sort    string
}

func (v *viewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.section, "section", "all", "Section: students, faculties or all")
	cmd.Flags().StringVar(&v.search, "search", "", "Search by name, ID number, department or college")
	cmd.Flags().StringVar(&v.sort, "sort", "", "Sort: "+strings.Join(sortopt.Tokens(), ", "))
}

// snapshot resolves the flags into an export snapshot.
func (v *viewFlags) snapshot() (export.Snapshot, error) {
	switch strings.ToLower(v.section) {
	case "", "all", "students", "student", "faculties", "faculty":
	default:
		return export.Snapshot{}, fmt.Errorf("unknown section %q (want students, faculties or all)", v.section)
	}
	snap := export.Snapshot{Section: v.section, Search: strings.TrimSpace(v.search)}
	if v.sort != "" {
		directive, ok := sortopt.Directive(v.sort)
		if !ok {
			return export.Snapshot{}, fmt.Errorf("unknown sort %q (want one of %s)", v.sort, strings.Join(sortopt.Tokens(), ", "))
		}
		snap.Sort = directive
	}
	return snap, nil
}

// query is the single-page request for snap.
func query(snap export.Snapshot, page, limit int) api.Query {
	return api.Query{
		UserType: model.UserTypeForSection(snap.Section),
		Search:   snap.Search,
		Page:     page,
		Limit:    limit,
		Sort:     snap.Sort,
	}
}

func newNormalizer() *normalize.Normalizer {
	loc, err := timecalc.LoadLocation(cfg.Display.Timezone)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return normalize.New(loc)
}

func tokenStore() *api.TokenStore {
	store, err := api.DefaultTokenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return store
}

// newClient builds an API client carrying the stored session. Interactive
// views pass withCache to read through the configured list-page cache.
func newClient(ctx context.Context, withCache bool) *api.Client {
	hc, err := api.NewHTTPClient(ctx, tokenStore(), cfg.API.Timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	opts := []api.Option{
		api.WithHTTPClient(hc),
		api.WithLogger(logger),
		api.WithNormalizer(newNormalizer()),
	}
	if withCache {
		store, err := cache.New(cfg.Cache.Backend, cfg.Cache.RedisAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if store != nil {
			opts = append(opts, api.WithCache(store, cfg.Cache.TTL))
		}
	}
	return api.NewClient(cfg.API.BaseURL, opts...)
}
