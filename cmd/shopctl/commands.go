package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/lifecycle"
	cartsvc "garment-storefront/internal/service/cart"
	ordersvc "garment-storefront/internal/service/order"
)

type catalog interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id string) (*domain.Product, error)
}

type app struct {
	carts   *cartsvc.Service
	orders  *ordersvc.Service
	catalog catalog
	out     io.Writer
}

type command func(ctx context.Context, args []string) error

func (a *app) commands() map[string]command {
	return map[string]command{
		"catalog":  a.browse,
		"cart":     a.cart,
		"checkout": a.checkout,
		"propose":  a.propose,
		"show":     a.show,
		"list":     a.list,
		"review":   a.review,
		"accept":   a.accept,
		"reject":   a.rejectProposal,
		"finalize": a.finalize,
		"proof":    a.proof,
		"verify":   a.verify,
		"produce":  a.produce,
		"dispatch": a.dispatch,
		"receive":  a.receive,
		"cancel":   a.cancel,
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func (a *app) cart(ctx context.Context, args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	c := a.carts.Load(ctx)
	fs := newFlagSet("cart " + sub)
	product := fs.String("product", "", "product id")
	name := fs.String("name", "", "product name")
	size := fs.String("size", "", "size")
	color := fs.String("color", "", "color")
	qty := fs.String("qty", "1", "quantity")
	price := fs.Int64("price", 0, "unit price in cents")
	line := fs.String("line", "", "line id")
	file := fs.String("file", "", "JSON array of cart update actions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch sub {
	case "show":
	case "add":
		if strings.TrimSpace(*product) == "" {
			return domain.Validation("product", "product is required")
		}
		if *price <= 0 || *name == "" {
			p, err := a.catalog.Product(ctx, *product)
			if err != nil {
				return err
			}
			if *price <= 0 {
				*price = p.PriceCents
			}
			if *name == "" {
				*name = p.Name
			}
		}
		c = a.carts.AddItem(ctx, c, domain.LineItem{
			ProductID:      *product,
			Name:           *name,
			Size:           *size,
			Color:          *color,
			Quantity:       domain.ParseQuantity(*qty),
			UnitPriceCents: *price,
		})
	case "remove":
		c = a.carts.RemoveItem(ctx, c, *product, *size, *color)
	case "set":
		if strings.TrimSpace(*line) == "" {
			return domain.Validation("line", "line id is required")
		}
		c = a.carts.SetQuantity(ctx, c, *line, domain.ParseQuantity(*qty))
	case "apply":
		raw, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read actions: %w", err)
		}
		var actions []cartsvc.UpdateAction
		if err := json.Unmarshal(raw, &actions); err != nil {
			return domain.Validation("file", "actions must be a JSON array: %v", err)
		}
		if c, err = a.carts.Update(ctx, c, actions); err != nil {
			return err
		}
	case "clear":
		c = a.carts.Clear(ctx)
	default:
		return fmt.Errorf("unknown cart command %q", sub)
	}

	for _, l := range c.Items {
		fmt.Fprintf(a.out, "%-20s %-24s %-4s %-10s x%-3d %12d\n", l.ID, l.Name, l.Size, l.Color, l.Quantity, l.TotalCents())
	}
	fmt.Fprintf(a.out, "items=%d total=%d\n", c.Quantity(), c.Total())
	return nil
}

func (a *app) browse(ctx context.Context, args []string) error {
	fs := newFlagSet("catalog")
	id := fs.String("id", "", "show one product")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id != "" {
		p, err := a.catalog.Product(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(a.out, p)
	}
	products, err := a.catalog.Products(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Fprintf(a.out, "%-20s %-12s %-24s %12d stock=%d\n", p.ID, p.SKU, p.Name, p.PriceCents, p.Stock)
	}
	return nil
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := newFlagSet("checkout")
	notes := fs.String("notes", "", "shipping notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	o, err := a.orders.SubmitCartOrder(ctx, a.carts.Load(ctx), *notes)
	if err != nil {
		return err
	}
	return printJSON(a.out, o)
}

func (a *app) propose(ctx context.Context, args []string) error {
	fs := newFlagSet("propose")
	specPath := fs.String("spec", "", "path to the custom order JSON")
	ack := fs.Bool("ack", false, "acknowledge the fabric sourcing disclosure")
	var images stringList
	fs.Var(&images, "image", "reference image path (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := os.ReadFile(*specPath)
	if err != nil {
		return fmt.Errorf("read spec: %w", err)
	}
	var spec domain.CustomOrderSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return domain.Validation("spec", "invalid JSON: %v", err)
	}
	uploads := make([]domain.Upload, 0, len(images))
	for _, p := range images {
		up, err := readUpload(p)
		if err != nil {
			return err
		}
		uploads = append(uploads, up)
	}
	o, err := a.orders.SubmitCustomOrder(ctx, spec, uploads, *ack)
	if err != nil {
		return err
	}
	return printJSON(a.out, o)
}

func (a *app) show(ctx context.Context, args []string) error {
	id, err := a.orderFlags("show", args, nil)
	if err != nil {
		return err
	}
	o, err := a.orders.Refresh(ctx, id)
	if err != nil {
		return err
	}
	if err := printJSON(a.out, o); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "available: %s\n", joinActions(a.orders.Actions(*o)))
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	rawState := fs.String("state", "", "filter by state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var state domain.State
	if *rawState != "" {
		s, err := lifecycle.ParseState(*rawState)
		if err != nil {
			return domain.Validation("state", "%v", err)
		}
		state = s
	}
	orders, err := a.orders.List(ctx, state)
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Fprintf(a.out, "%s  %-8s %-22s %12d  %s\n", o.ID, o.Kind, o.State, o.TotalCents, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) review(ctx context.Context, args []string) error {
	var price int64
	var note string
	return a.step(ctx, "review", args, func(fs *flag.FlagSet) {
		fs.Int64Var(&price, "price", 0, "quoted price in cents")
		fs.StringVar(&note, "note", "", "note for the customer")
	}, func(o domain.Order) (*domain.Order, error) {
		return a.orders.ReviewProposal(ctx, o, price, note)
	})
}

func (a *app) accept(ctx context.Context, args []string) error {
	return a.step(ctx, "accept", args, nil, func(o domain.Order) (*domain.Order, error) {
		return a.orders.AcceptProposal(ctx, o)
	})
}

func (a *app) rejectProposal(ctx context.Context, args []string) error {
	var reason string
	return a.step(ctx, "reject", args, reasonFlag(&reason), func(o domain.Order) (*domain.Order, error) {
		return a.orders.RejectProposal(ctx, o, reason)
	})
}

func (a *app) finalize(ctx context.Context, args []string) error {
	return a.step(ctx, "finalize", args, nil, func(o domain.Order) (*domain.Order, error) {
		return a.orders.FinalizeProposal(ctx, o)
	})
}

func (a *app) proof(ctx context.Context, args []string) error {
	var path string
	return a.step(ctx, "proof", args, func(fs *flag.FlagSet) {
		fs.StringVar(&path, "file", "", "payment proof image")
	}, func(o domain.Order) (*domain.Order, error) {
		var up domain.Upload
		if path != "" {
			var err error
			if up, err = readUpload(path); err != nil {
				return nil, err
			}
		}
		return a.orders.UploadProof(ctx, o, up)
	})
}

func (a *app) verify(ctx context.Context, args []string) error {
	var decision, reason string
	return a.step(ctx, "verify", args, func(fs *flag.FlagSet) {
		fs.StringVar(&decision, "decision", "", "approve or reject")
		fs.StringVar(&reason, "reason", "", "rejection reason")
	}, func(o domain.Order) (*domain.Order, error) {
		return a.orders.Verify(ctx, o, ordersvc.Decision(strings.ToLower(decision)), reason)
	})
}

func (a *app) produce(ctx context.Context, args []string) error {
	return a.step(ctx, "produce", args, nil, func(o domain.Order) (*domain.Order, error) {
		return a.orders.StartProduction(ctx, o)
	})
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	var carrier, photoPath string
	return a.step(ctx, "dispatch", args, func(fs *flag.FlagSet) {
		fs.StringVar(&carrier, "carrier", "", "carrier tracking reference")
		fs.StringVar(&photoPath, "photo", "", "parcel photo")
	}, func(o domain.Order) (*domain.Order, error) {
		var photo *domain.Upload
		if photoPath != "" {
			up, err := readUpload(photoPath)
			if err != nil {
				return nil, err
			}
			photo = &up
		}
		return a.orders.Dispatch(ctx, o, carrier, photo)
	})
}

func (a *app) receive(ctx context.Context, args []string) error {
	return a.step(ctx, "receive", args, nil, func(o domain.Order) (*domain.Order, error) {
		return a.orders.ConfirmReceipt(ctx, o)
	})
}

func (a *app) cancel(ctx context.Context, args []string) error {
	var reason string
	return a.step(ctx, "cancel", args, reasonFlag(&reason), func(o domain.Order) (*domain.Order, error) {
		return a.orders.Cancel(ctx, o, reason)
	})
}

func reasonFlag(dst *string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.StringVar(dst, "reason", "", "reason")
	}
}

// step fetches the current snapshot, applies fn to it and prints the
// server's answer.
func (a *app) step(ctx context.Context, name string, args []string, extra func(*flag.FlagSet), fn func(domain.Order) (*domain.Order, error)) error {
	id, err := a.orderFlags(name, args, extra)
	if err != nil {
		return err
	}
	current, err := a.orders.Refresh(ctx, id)
	if err != nil {
		return err
	}
	next, err := fn(*current)
	if err != nil {
		return err
	}
	return printJSON(a.out, next)
}

func (a *app) orderFlags(name string, args []string, extra func(*flag.FlagSet)) (string, error) {
	fs := newFlagSet(name)
	id := fs.String("id", "", "order id")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if strings.TrimSpace(*id) == "" {
		return "", domain.Validation("id", "order id is required")
	}
	return strings.TrimSpace(*id), nil
}

func readUpload(path string) (domain.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.Upload{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func joinActions(actions []lifecycle.Action) string {
	if len(actions) == 0 {
		return "none"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
