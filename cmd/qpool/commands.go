package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/codewandler/qpool-go/questionpool"
	"github.com/codewandler/qpool-go/questionpool/service"
)

type commandFunc func(ctx context.Context, svc *service.Service, out *printer, args []string) error

var commands = map[string]commandFunc{
	"create":   cmdCreate,
	"add":      cmdAdd,
	"remove":   cmdRemove,
	"set-data": cmdSetData,
	"show":     cmdShow,
	"list":     cmdList,
	"delete":   cmdDelete,
	"events":   cmdEvents,
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseIDs expects exactly len(names) positional ids.
func parseIDs(args []string, names ...string) ([]questionpool.ID, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("%w: expected %v", errUsage, names)
	}
	ids := make([]questionpool.ID, len(args))
	for i, a := range args {
		id, err := questionpool.ParseID(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
		ids[i] = id
	}
	return ids, nil
}

func cmdCreate(ctx context.Context, svc *service.Service, out *printer, args []string) error {
	fs := newFlagSet("create")
	name := fs.String("name", "", "pool name")
	desc := fs.String("description", "", "pool description")
	rawID := fs.String("id", "", "pool id (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	var id *questionpool.ID
	if *rawID != "" {
		parsed, err := questionpool.ParseID(*rawID)
		if err != nil {
			return err
		}
		id = &parsed
	}

	data := questionpool.NewData(*name, *desc)
	poolID, err := svc.CreateQuestionPool(ctx, data.Name, data.Description, id)
	if err != nil {
		return err
	}
	return out.value(map[string]string{"id": poolID.String()}, poolID.String())
}

func cmdAdd(ctx context.Context, svc *service.Service, _ *printer, args []string) error {
	ids, err := parseIDs(args, "pool", "question")
	if err != nil {
		return err
	}
	return svc.AddQuestion(ctx, ids[0], ids[1])
}

func cmdRemove(ctx context.Context, svc *service.Service, _ *printer, args []string) error {
	ids, err := parseIDs(args, "pool", "question")
	if err != nil {
		return err
	}
	return svc.RemoveQuestion(ctx, ids[0], ids[1])
}

// cmdSetData replaces the fields given as flags and keeps the others.
func cmdSetData(ctx context.Context, svc *service.Service, _ *printer, args []string) error {
	fs := newFlagSet("set-data")
	name := fs.String("name", "", "pool name (empty clears it)")
	desc := fs.String("description", "", "pool description (empty clears it)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	ids, err := parseIDs(fs.Args(), "pool")
	if err != nil {
		return err
	}

	data, err := svc.GetPoolData(ctx, ids[0])
	if err != nil {
		return err
	}
	set := questionpool.NewData(*name, *desc)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			data.Name = set.Name
		case "description":
			data.Description = set.Description
		}
	})
	return svc.StorePoolData(ctx, ids[0], data)
}

type poolView struct {
	ID          questionpool.ID   `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Creator     string            `json:"creator"`
	Editor      string            `json:"editor,omitempty"`
	Deleted     bool              `json:"deleted"`
	Questions   []questionpool.ID `json:"questions"`
}

func cmdShow(ctx context.Context, svc *service.Service, out *printer, args []string) error {
	ids, err := parseIDs(args, "pool")
	if err != nil {
		return err
	}
	p, err := svc.GetPool(ctx, ids[0])
	if err != nil {
		return err
	}
	v := poolView{
		ID:          p.ID(),
		Name:        p.Data().GetName(),
		Description: p.Data().GetDescription(),
		Creator:     p.Creator(),
		Editor:      p.Editor(),
		Deleted:     p.IsDeleted(),
		Questions:   p.Questions(),
	}
	return out.pool(v)
}

func cmdList(ctx context.Context, svc *service.Service, out *printer, args []string) error {
	fs := newFlagSet("list")
	var f service.Filter
	fs.StringVar(&f.Name, "name", "", "case-insensitive name substring")
	fs.StringVar(&f.Creator, "creator", "", "exact creator")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	items, err := svc.GetPools(ctx, &f)
	if err != nil {
		return err
	}
	return out.list(items)
}

func cmdDelete(ctx context.Context, svc *service.Service, _ *printer, args []string) error {
	ids, err := parseIDs(args, "pool")
	if err != nil {
		return err
	}
	return svc.DeletePool(ctx, ids[0])
}

func cmdEvents(ctx context.Context, svc *service.Service, out *printer, args []string) error {
	ids, err := parseIDs(args, "pool")
	if err != nil {
		return err
	}
	envs, err := svc.History(ctx, ids[0])
	if err != nil {
		return err
	}
	return out.events(envs)
}
