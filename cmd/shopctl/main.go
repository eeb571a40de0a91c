// Command shopctl drives the storefront core from a terminal: a customer's
// cart and checkout, custom order proposals, and the staff console.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"garment-storefront/internal/auth"
	"garment-storefront/internal/config"
	"garment-storefront/internal/domain"
	"garment-storefront/internal/kvstore"
	"garment-storefront/internal/orderapi"
	cartsvc "garment-storefront/internal/service/cart"
	ordersvc "garment-storefront/internal/service/order"
)

const usage = `usage: shopctl <command> [flags]

customer:
  catalog     list products, or -id for one
  cart show | cart add | cart remove | cart set | cart apply | cart clear
  checkout    submit the cart as a catalog order
  propose     submit a custom order proposal
  accept      accept a reviewed proposal
  reject      reject a reviewed proposal
  proof       upload a payment proof
  receive     confirm receipt of a delivered order

staff:
  review      price a submitted proposal
  finalize    finalize a reviewed proposal on the customer's behalf
  verify      approve or reject a payment proof
  produce     start production
  dispatch    hand the order to the carrier
  cancel      cancel an order

any:
  show        print one order and the actions available to you
  list        list orders
  token       issue a development token (needs JWT_SECRET)
`

func main() {
	logger := log.New(os.Stderr, "[shopctl] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	if os.Getenv("SHOPCTL_DEBUG") == "" {
		logger.SetOutput(io.Discard)
	}
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.OrderAPITimeout+5*time.Second)
	defer cancel()
	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	name, rest := args[0], args[1:]
	if name == "token" {
		return tokenCmd(cfg, rest, out)
	}

	store, err := kvstore.Open(cfg.CartStoreDSN)
	if err != nil {
		return fmt.Errorf("open cart store: %w", err)
	}
	defer store.Close()

	actor := domain.Actor{}
	if cfg.OrderAPIToken != "" {
		if actor, err = auth.Peek(cfg.OrderAPIToken); err != nil {
			return fmt.Errorf("ORDER_API_TOKEN: %w", err)
		}
	}
	carts := cartsvc.New(store, logger)
	api := orderapi.New(cfg.OrderAPIURL, cfg.OrderAPIToken, cfg.OrderAPITimeout, logger)
	a := &app{
		carts:   carts,
		orders:  ordersvc.New(api, carts, actor, logger),
		catalog: api,
		out:     out,
	}

	cmd, ok := a.commands()[name]
	if !ok {
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd(ctx, rest)
}

func tokenCmd(cfg config.Config, args []string, out io.Writer) error {
	fs := newFlagSet("token")
	id := fs.String("id", "", "actor id")
	role := fs.String("role", string(domain.RoleCustomer), "customer or staff")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to issue tokens")
	}
	tok, err := auth.New(cfg.JWTSecret).Issue(domain.Actor{ID: *id, Role: domain.Role(*role)}, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe renders domain errors with the field or states the user needs to
// fix the request.
func describe(err error) string {
	de, ok := domain.AsError(err)
	if !ok {
		return "error: " + err.Error()
	}
	msg := "error: " + de.Error()
	if domain.Retryable(err) {
		msg += "\nthe order may have changed; run `shopctl show` and retry"
	}
	return msg
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrStateConflict), errors.Is(err, domain.ErrTransport):
		return 3
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPreconditionFailed):
		return 2
	}
	return 1
}
