// Command s3gwadmin is the administrative command-line tool, grounded in
// Ceph's rgw_admin.cc: two-word "<noun> <verb>" commands operating
// directly against the Identity Store and the metadata backend rather
// than going over the Admin REST surface, the same split rgw_admin keeps
// from radosgw itself. Flag names and the noun/verb set follow
// rgw_admin.cc's OPT_* table; command wiring follows the urfave/cli/v2
// style the rest of the pack's CLI tools use.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cloudgate/s3gw/internal/backend/hbase"
	"github.com/cloudgate/s3gw/internal/backend/memory"
	"github.com/cloudgate/s3gw/internal/formatter"
	"github.com/cloudgate/s3gw/internal/helper"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
	"github.com/cloudgate/s3gw/internal/storage"
)

// env bundles the collaborators every command needs, built once in
// Before from the global flags.
type env struct {
	backend meta.Backend
	iam     *iam.Store
	gateway *storage.Gateway
	out     formatter.Formatter
}

func (e *env) flush() {
	e.out.Flush(os.Stdout)
	fmt.Println()
}

func main() {
	var e env

	app := &cli.App{
		Name:  "s3gwadmin",
		Usage: "administer s3gw users, buckets, and garbage collection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to the gateway's JSON config file"},
			&cli.StringFlag{Name: "format", Value: "json", Usage: "output format: json or xml"},
			&cli.BoolFlag{Name: "pretty-format", Usage: "pretty-print the output"},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				helper.SetupConfig(path)
			}
			switch helper.CONFIG.MetaBackend {
			case "hbase":
				e.backend = hbase.New(helper.CONFIG.ZookeeperAddress, 30*time.Second)
			default:
				e.backend = memory.New()
			}
			e.iam = iam.NewStore()
			e.gateway = storage.New(e.backend, e.iam, nil)
			e.out = formatter.New(c.String("format"), c.Bool("pretty-format"))
			return nil
		},
		Commands: userCommands(&e),
	}
	app.Commands = append(app.Commands, subuserCommands(&e)...)
	app.Commands = append(app.Commands, keyCommands(&e)...)
	app.Commands = append(app.Commands, capsCommands(&e)...)
	app.Commands = append(app.Commands, bucketCommands(&e)...)
	app.Commands = append(app.Commands, usageCommands(&e)...)
	app.Commands = append(app.Commands, gcCommands(&e)...)
	app.Commands = append(app.Commands, policyCommands(&e)...)
	app.Commands = append(app.Commands, outOfScopeCommands()...)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// ---- shared flag helpers ----

func uidFlag() cli.Flag   { return &cli.StringFlag{Name: "uid", Usage: "user id"} }
func bucketFlag() cli.Flag { return &cli.StringFlag{Name: "bucket", Usage: "bucket name"} }

func parsePermAccess(access string) (iam.Perm, error) {
	switch strings.ToLower(access) {
	case "", "read":
		return iam.PermRead, nil
	case "write":
		return iam.PermWrite, nil
	case "readwrite":
		return iam.PermRead | iam.PermWrite, nil
	case "full":
		return iam.PermFullControl, nil
	default:
		return 0, fmt.Errorf("invalid --access %q: expected read, write, readwrite, or full", access)
	}
}

func parseKeyType(s string) iam.KeyType {
	if strings.EqualFold(s, "swift") {
		return iam.KeyTypeSwift
	}
	return iam.KeyTypeS3
}

// ---- user ----

func userCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "user",
		Usage: "manage users, grounded in rgw_admin.cc's OPT_USER_* verbs",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "user create: requires --uid and --display-name",
				Flags: []cli.Flag{
					uidFlag(),
					&cli.StringFlag{Name: "display-name"},
					&cli.StringFlag{Name: "email"},
					&cli.IntFlag{Name: "max-buckets"},
					&cli.StringFlag{Name: "access-key"},
					&cli.StringFlag{Name: "secret"},
					&cli.BoolFlag{Name: "gen-access-key"},
					&cli.BoolFlag{Name: "gen-secret"},
					&cli.StringFlag{Name: "caps"},
				},
				Action: func(c *cli.Context) error {
					caps, err := iam.ParseCaps(c.String("caps"))
					if err != nil {
						return err
					}
					accessKey := c.String("access-key")
					if c.Bool("gen-access-key") {
						accessKey = ""
					}
					secret := c.String("secret")
					if c.Bool("gen-secret") {
						secret = ""
					}
					u, err := e.iam.AddUser(iam.AddUserParams{
						UserID:      c.String("uid"),
						DisplayName: c.String("display-name"),
						Email:       c.String("email"),
						MaxBuckets:  c.Int("max-buckets"),
						AccessKeyID: accessKey,
						SecretKey:   secret,
						Caps:        caps,
					})
					if err != nil {
						return err
					}
					dumpUser(e.out, u)
					e.flush()
					return nil
				},
			},
			{
				Name:  "modify",
				Usage: "user modify",
				Flags: []cli.Flag{
					uidFlag(),
					&cli.StringFlag{Name: "display-name"},
					&cli.StringFlag{Name: "email"},
					&cli.IntFlag{Name: "max-buckets"},
					&cli.BoolFlag{Name: "suspended"},
				},
				Action: func(c *cli.Context) error {
					params := iam.ModifyUserParams{UserID: c.String("uid")}
					if c.IsSet("display-name") {
						params.DisplayName, params.SetDisplayName = c.String("display-name"), true
					}
					if c.IsSet("email") {
						params.Email, params.SetEmail = c.String("email"), true
					}
					if c.IsSet("max-buckets") {
						params.MaxBuckets, params.SetMaxBuckets = c.Int("max-buckets"), true
					}
					if c.IsSet("suspended") {
						params.Suspended, params.SetSuspended = c.Bool("suspended"), true
					}
					u, err := e.iam.ModifyUser(params)
					if err != nil {
						return err
					}
					dumpUser(e.out, u)
					e.flush()
					return nil
				},
			},
			{
				Name:  "info",
				Usage: "user info",
				Flags: []cli.Flag{uidFlag()},
				Action: func(c *cli.Context) error {
					u, err := e.iam.Info(c.String("uid"))
					if err != nil {
						return err
					}
					dumpUser(e.out, u)
					e.flush()
					return nil
				},
			},
			{
				Name:  "suspend",
				Usage: "user suspend",
				Flags: []cli.Flag{uidFlag()},
				Action: func(c *cli.Context) error {
					_, err := e.iam.ModifyUser(iam.ModifyUserParams{UserID: c.String("uid"), Suspended: true, SetSuspended: true})
					return err
				},
			},
			{
				Name:  "enable",
				Usage: "user enable",
				Flags: []cli.Flag{uidFlag()},
				Action: func(c *cli.Context) error {
					_, err := e.iam.ModifyUser(iam.ModifyUserParams{UserID: c.String("uid"), Suspended: false, SetSuspended: true})
					return err
				},
			},
			{
				Name:  "rm",
				Usage: "user rm: requires --purge-data if the user owns buckets",
				Flags: []cli.Flag{
					uidFlag(),
					&cli.BoolFlag{Name: "purge-data"},
				},
				Action: func(c *cli.Context) error {
					return e.iam.RemoveUser(c.String("uid"), c.Bool("purge-data"))
				},
			},
		},
	}}
}

func dumpUser(out formatter.Formatter, u *iam.User) {
	out.OpenObject("user")
	out.DumpString("user_id", u.UserID)
	out.DumpString("display_name", u.DisplayName)
	out.DumpString("email", u.Email)
	out.DumpBool("suspended", u.Suspended)
	out.DumpInt("max_buckets", int64(u.MaxBuckets))
	out.DumpString("caps", u.Caps.String())
	out.OpenArray("keys")
	for _, k := range u.AccessKeys {
		out.OpenObject("")
		out.DumpString("access_key", k.ID)
		out.DumpString("secret_key", k.Secret)
		out.DumpString("subuser", k.Subuser)
		out.CloseSection()
	}
	out.CloseSection()
	out.OpenArray("swift_keys")
	for _, k := range u.SwiftKeys {
		out.OpenObject("")
		out.DumpString("access_key", k.ID)
		out.DumpString("secret_key", k.Secret)
		out.DumpString("subuser", k.Subuser)
		out.CloseSection()
	}
	out.CloseSection()
	out.OpenArray("subusers")
	for _, s := range u.Subusers {
		out.OpenObject("")
		out.DumpString("name", s.Name)
		out.DumpString("permissions", s.PermMask.String())
		out.CloseSection()
	}
	out.CloseSection()
	out.CloseSection()
}

// ---- subuser ----

func subuserCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "subuser",
		Usage: "manage subusers",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Flags: []cli.Flag{uidFlag(), &cli.StringFlag{Name: "subuser"}, &cli.StringFlag{Name: "access", Value: "read"}},
				Action: func(c *cli.Context) error {
					mask, err := parsePermAccess(c.String("access"))
					if err != nil {
						return err
					}
					return e.iam.AddSubuser(c.String("uid"), c.String("subuser"), mask)
				},
			},
			{
				Name:  "modify",
				Flags: []cli.Flag{uidFlag(), &cli.StringFlag{Name: "subuser"}, &cli.StringFlag{Name: "access", Value: "read"}},
				Action: func(c *cli.Context) error {
					mask, err := parsePermAccess(c.String("access"))
					if err != nil {
						return err
					}
					return e.iam.ModifySubuser(c.String("uid"), c.String("subuser"), mask)
				},
			},
			{
				Name:  "rm",
				Flags: []cli.Flag{uidFlag(), &cli.StringFlag{Name: "subuser"}, &cli.BoolFlag{Name: "purge-keys"}},
				Action: func(c *cli.Context) error {
					return e.iam.RemoveSubuser(c.String("uid"), c.String("subuser"), c.Bool("purge-keys"))
				},
			},
		},
	}}
}

// ---- key ----

func keyCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "key",
		Usage: "manage access keys",
		Subcommands: []*cli.Command{
			{
				Name: "create",
				Flags: []cli.Flag{
					uidFlag(),
					&cli.StringFlag{Name: "subuser"},
					&cli.StringFlag{Name: "key-type", Value: "s3"},
					&cli.StringFlag{Name: "access-key"},
					&cli.StringFlag{Name: "secret"},
					&cli.BoolFlag{Name: "gen-access-key"},
					&cli.BoolFlag{Name: "gen-secret"},
				},
				Action: func(c *cli.Context) error {
					accessKey := c.String("access-key")
					if c.Bool("gen-access-key") {
						accessKey = ""
					}
					secret := c.String("secret")
					if c.Bool("gen-secret") {
						secret = ""
					}
					key, err := e.iam.AddKey(iam.AddKeyParams{
						UserID:      c.String("uid"),
						Subuser:     c.String("subuser"),
						Type:        parseKeyType(c.String("key-type")),
						AccessKeyID: accessKey,
						SecretKey:   secret,
					})
					if err != nil {
						return err
					}
					e.out.OpenObject("key")
					e.out.DumpString("access_key", key.ID)
					e.out.DumpString("secret_key", key.Secret)
					e.out.CloseSection()
					e.flush()
					return nil
				},
			},
			{
				Name:  "rm",
				Flags: []cli.Flag{uidFlag(), &cli.StringFlag{Name: "access-key"}},
				Action: func(c *cli.Context) error {
					return e.iam.RemoveKey(c.String("uid"), c.String("access-key"))
				},
			},
		},
	}}
}

// ---- caps ----

func capsCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "caps",
		Usage: "manage admin capabilities",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Flags: []cli.Flag{uidFlag(), &cli.StringFlag{Name: "caps"}},
				Action: func(c *cli.Context) error {
					caps, err := iam.ParseCaps(c.String("caps"))
					if err != nil {
						return err
					}
					return e.iam.AddCaps(c.String("uid"), caps)
				},
			},
			{
				Name:  "rm",
				Flags: []cli.Flag{uidFlag(), &cli.StringFlag{Name: "caps"}},
				Action: func(c *cli.Context) error {
					caps, err := iam.ParseCaps(c.String("caps"))
					if err != nil {
						return err
					}
					return e.iam.RemoveCaps(c.String("uid"), caps)
				},
			},
		},
	}}
}

// ---- bucket ----

func bucketCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:    "bucket",
		Aliases: []string{"buckets"},
		Usage:   "manage buckets, grounded in rgw_rest_bucket.cc's admin verbs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{uidFlag()},
				Action: func(c *cli.Context) error {
					buckets, err := e.backend.ListBucketsByOwner(context.Background(), c.String("uid"))
					if err != nil {
						return err
					}
					e.out.OpenArray("buckets")
					for _, b := range buckets {
						e.out.OpenObject("")
						e.out.DumpString("name", b.Name)
						e.out.DumpString("owner", b.OwnerID)
						e.out.CloseSection()
					}
					e.out.CloseSection()
					e.flush()
					return nil
				},
			},
			{
				Name:  "link",
				Flags: []cli.Flag{uidFlag(), bucketFlag()},
				Action: func(c *cli.Context) error {
					e.iam.LinkBucket(c.String("bucket"), c.String("uid"))
					return nil
				},
			},
			{
				Name:  "unlink",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(c *cli.Context) error {
					e.iam.UnlinkBucket(c.String("bucket"))
					return nil
				},
			},
			{
				Name:  "rm",
				Flags: []cli.Flag{bucketFlag(), &cli.BoolFlag{Name: "purge-objects"}},
				Action: func(c *cli.Context) error {
					owner, _ := e.iam.BucketOwner(c.String("bucket"))
					credential := iam.Credential{UserID: owner, PermMask: iam.PermFullControl}
					return e.gateway.DeleteBucket(context.Background(), c.String("bucket"), credential, c.Bool("purge-objects"))
				},
			},
			{
				Name:  "stats",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(c *cli.Context) error {
					stats, err := e.gateway.BucketStats(context.Background(), c.String("bucket"))
					if err != nil {
						return err
					}
					dumpCategoryStats(e.out, "stats", stats)
					e.flush()
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "bucket check [--fix]: verifies bucket index stats against recount",
				Flags: []cli.Flag{bucketFlag(), &cli.BoolFlag{Name: "fix"}},
				Action: func(c *cli.Context) error {
					existing, calculated, err := e.gateway.CheckBucketIndex(context.Background(), c.String("bucket"), c.Bool("fix"))
					if err != nil {
						return err
					}
					dumpCategoryStats(e.out, "existing_header", existing)
					dumpCategoryStats(e.out, "calculated_header", calculated)
					e.flush()
					return nil
				},
			},
		},
	}}
}

func dumpCategoryStats(out formatter.Formatter, name string, stats []meta.CategoryStats) {
	out.OpenArray(name)
	for _, s := range stats {
		out.OpenObject("")
		out.DumpString("category", string(s.Category))
		out.DumpInt("num_objects", s.NumObjects)
		out.DumpInt("size_kb", s.SizeKB)
		out.CloseSection()
	}
	out.CloseSection()
}

// ---- usage ----

func usageCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "usage",
		Usage: "show or trim usage records",
		Subcommands: []*cli.Command{
			{
				Name: "show",
				Flags: []cli.Flag{
					uidFlag(),
					&cli.StringFlag{Name: "start-date"},
					&cli.StringFlag{Name: "end-date"},
					&cli.StringFlag{Name: "categories"},
				},
				Action: func(c *cli.Context) error {
					start, end, err := parseDateRange(c.String("start-date"), c.String("end-date"))
					if err != nil {
						return err
					}
					records, err := e.backend.QueryUsage(context.Background(), c.String("uid"), start, end)
					if err != nil {
						return err
					}
					records = filterUsageCategories(records, c.String("categories"))
					e.out.OpenArray("usage")
					for _, r := range records {
						e.out.OpenObject("")
						e.out.DumpString("user", r.UserID)
						e.out.DumpString("category", string(r.Category))
						e.out.DumpInt("epoch", r.EpochBucket)
						e.out.DumpInt("bytes_sent", r.BytesSent)
						e.out.DumpInt("bytes_received", r.BytesReceived)
						e.out.DumpInt("ops", r.Ops)
						e.out.CloseSection()
					}
					e.out.CloseSection()
					e.flush()
					return nil
				},
			},
			{
				Name: "trim",
				Flags: []cli.Flag{
					uidFlag(),
					&cli.StringFlag{Name: "start-date"},
					&cli.StringFlag{Name: "end-date"},
					&cli.BoolFlag{Name: "yes-i-really-mean-it"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes-i-really-mean-it") {
						return fmt.Errorf("usage trim is destructive; pass --yes-i-really-mean-it")
					}
					start, end, err := parseDateRange(c.String("start-date"), c.String("end-date"))
					if err != nil {
						return err
					}
					return e.backend.TrimUsage(context.Background(), c.String("uid"), start, end)
				},
			},
		},
	}}
}

func filterUsageCategories(records []meta.UsageRecord, raw string) []meta.UsageRecord {
	if raw == "" {
		return records
	}
	want := map[meta.UsageCategory]bool{}
	for _, c := range strings.Split(raw, ",") {
		want[meta.UsageCategory(strings.TrimSpace(c))] = true
	}
	filtered := records[:0]
	for _, r := range records {
		if want[r.Category] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// parseDateRange parses the "YYYY-MM-DD[ hh:mm:ss]" human date form
// admin commands accept. An empty start defaults to 0 and an empty end to
// math.MaxInt64, so an empty bound leaves that side of the range open.
func parseDateRange(start, end string) (int64, int64, error) {
	s, err := parseHumanDate(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := parseHumanDate(end)
	if err != nil {
		return 0, 0, err
	}
	if end == "" {
		e = math.MaxInt64
	}
	return s, e, nil
}

func parseHumanDate(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q: expected YYYY-MM-DD[ hh:mm:ss]", s)
}

// ---- gc ----

func gcCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "gc",
		Usage: "inspect or run the garbage-collection log",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Value: 1000}},
				Action: func(c *cli.Context) error {
					entries, err := e.backend.ScanGC(context.Background(), c.Int("limit"), "")
					if err != nil {
						return err
					}
					e.out.OpenArray("gc")
					for _, g := range entries {
						e.out.OpenObject("")
						e.out.DumpString("bucket", g.Bucket)
						e.out.DumpString("object", g.Object)
						e.out.DumpString("tag", g.Rowkey)
						e.out.CloseSection()
					}
					e.out.CloseSection()
					e.flush()
					return nil
				},
			},
			{
				Name:  "process",
				Usage: "run one sweep pass over the gc log immediately",
				Action: func(c *cli.Context) error {
					return runOneGCPass(context.Background(), e.backend)
				},
			},
		},
	}}
}

// runOneGCPass drains the gc log in scanLimit-sized pages until it is
// empty, mirroring "radosgw-admin gc process" running synchronously to
// completion instead of cmd/s3gwgc's continuous background sweep.
func runOneGCPass(ctx context.Context, backend meta.Backend) error {
	const scanLimit = 50
	for {
		// Every entry of a page is removed before the next scan, so each
		// page is read from the head of the log.
		entries, err := backend.ScanGC(ctx, scanLimit, "")
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, entry := range entries {
			if len(entry.Parts) == 0 {
				backend.RemoveObjectData(ctx, entry.Location, entry.Pool, entry.ObjectID)
			} else {
				for _, p := range entry.Parts {
					backend.RemoveObjectData(ctx, entry.Location, entry.Pool, p.ETag)
				}
			}
			if err := backend.RemoveGC(ctx, entry); err != nil {
				return err
			}
		}
	}
}

// ---- policy ----

// policyCommands implements "policy get", reading the raw bucket/object
// policy attribute the Backend's Attr primitives store, grounded in
// rgw_admin.cc's OPT_POLICY (it prints whatever's attached, unparsed).
func policyCommands(e *env) []*cli.Command {
	return []*cli.Command{{
		Name:  "policy",
		Usage: "inspect the raw ACL/policy attribute attached to a bucket or object",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Flags: []cli.Flag{bucketFlag(), &cli.StringFlag{Name: "object"}},
				Action: func(c *cli.Context) error {
					value, err := e.backend.GetAttr(context.Background(), c.String("bucket"), c.String("object"), "acl")
					if err != nil {
						return err
					}
					e.out.OpenObject("policy")
					e.out.DumpString("raw", string(value))
					e.out.CloseSection()
					e.flush()
					return nil
				},
			},
		},
	}}
}

// outOfScopeCommands registers the remaining rgw_admin.cc nouns
// (pool[s], log, temp, cluster, object) so the two-word dispatch table is
// complete, but they operate on Ceph's storage-cluster/placement layer
// directly — out of scope per spec.md's "backend storage protocol itself"
// non-goal, since Backend is an opaque primitive set with no pool or
// cluster-log concept of its own.
func outOfScopeCommands() []*cli.Command {
	unsupported := func(c *cli.Context) error {
		return fmt.Errorf("%s %s: operates on the storage cluster directly, out of scope for this gateway", c.Command.Name, strings.Join(c.Args().Slice(), " "))
	}
	nouns := []string{"pool", "pools", "log", "temp", "cluster", "object"}
	cmds := make([]*cli.Command, 0, len(nouns))
	for _, n := range nouns {
		cmds = append(cmds, &cli.Command{Name: n, Action: unsupported})
	}
	return cmds
}
