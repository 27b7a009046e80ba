// Package main provides storectl, a command-line consumer of the sync client.
// It drives the optimistic stores the same way the storefront UI would:
// mutations apply locally first, favorites batch through the debounced sync,
// and everything is flushed before exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/samber/do/v2"

	"github.com/solestoreapp/solestore-client/internal/config"
	"github.com/solestoreapp/solestore-client/internal/di"
	"github.com/solestoreapp/solestore-client/internal/di/providers"
	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/logger"
	"github.com/solestoreapp/solestore-client/internal/store"
)

const usage = `Usage: storectl -user <id> [flags] <command> [args]

Commands:
  show                      print the cart and favorites
  add <shoeId> <size>       add a shoe to the cart
  qty <itemId> <quantity>   change a line item quantity
  remove <itemId>           remove a line item
  clear-cart                empty the cart
  toggle <shoeId>...        toggle favorites (batched before exit)
  clear-favorites           remove all favorites
`

func main() {
	injector := di.NewContainer()

	if err := di.BootstrapClient(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap client: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	err := run(injector)

	// Flush the debounced favorites sync and close the cache before exit.
	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		log.Error("Shutdown error", "error", shutdownErr)
	}
	if cacheHandle, invokeErr := do.Invoke[*providers.CacheHandle](injector); invokeErr == nil {
		if closeErr := cacheHandle.Shutdown(); closeErr != nil {
			log.Error("Failed to close cache", "error", closeErr)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "storectl: %v\n", err)
		os.Exit(1)
	}
}

func run(injector do.Injector) error {
	cfg := do.MustInvoke[*config.Config](injector)
	cart := do.MustInvoke[*store.CartStore](injector)
	favorites := do.MustInvoke[*providers.FavoritesStoreHandle](injector)

	ctx := context.Background()
	userID := cfg.App.UserID

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "show":
		cart.Hydrate(userID)
		cart.LoadCachedCart(ctx, userID, false)
		printCart(cart)
		printFavorites(favorites.FavoritesStore)
		return nil

	case "add":
		shoeID, size, err := twoInts(args[1:], "add <shoeId> <size>")
		if err != nil {
			return err
		}
		if err := cart.AddToCart(ctx, shoeID, int(size), userID); err != nil {
			return err
		}
		printCart(cart)
		return nil

	case "qty":
		itemID, quantity, err := twoInts(args[1:], "qty <itemId> <quantity>")
		if err != nil {
			return err
		}
		if err := cart.UpdateQuantity(ctx, itemID, int(quantity), userID); err != nil {
			return err
		}
		printCart(cart)
		return nil

	case "remove":
		itemID, err := oneInt(args[1:], "remove <itemId>")
		if err != nil {
			return err
		}
		if err := cart.RemoveFromCart(ctx, itemID, userID); err != nil {
			return err
		}
		printCart(cart)
		return nil

	case "clear-cart":
		if err := cart.ClearCart(ctx, userID); err != nil {
			return err
		}
		fmt.Println("cart cleared")
		return nil

	case "toggle":
		if len(args) < 2 {
			return fmt.Errorf("usage: toggle <shoeId>...")
		}
		for _, raw := range args[1:] {
			shoeID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid shoe id %q: %w", raw, err)
			}
			favorites.ToggleFavorite(ctx, shoeID, userID)
			favorites.QueueSync(userID)
		}
		// The container shutdown flushes the debounced batch; the local view
		// already reflects the toggles.
		printFavorites(favorites.FavoritesStore)
		return nil

	case "clear-favorites":
		if err := favorites.ClearFavorites(ctx, userID); err != nil {
			return err
		}
		fmt.Println("favorites cleared")
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printCart(cart *store.CartStore) {
	items := cart.Items()
	fmt.Printf("cart: %d items, total $%.2f\n", store.TotalCount(items), store.TotalPrice(items))
	for _, item := range items {
		fmt.Printf("  #%d %s size %d x%d\n", item.ID, shoeName(item.Shoe, item.ShoeID), item.Size, item.Quantity)
	}
}

func printFavorites(favorites *store.FavoritesStore) {
	entries := favorites.Favorites()
	fmt.Printf("favorites: %d\n", len(entries))
	for _, entry := range entries {
		fmt.Printf("  %s (%d likes)\n", shoeName(entry.Shoe, entry.ShoeID), favorites.LikeCount(entry.ShoeID))
	}
}

func shoeName(shoe *domain.Shoe, shoeID int64) string {
	if shoe == nil || shoe.Model == nil || shoe.Model.Brand == nil {
		return fmt.Sprintf("shoe %d", shoeID)
	}
	return shoe.Model.Brand.Name + " " + shoe.Model.Name
}

func oneInt(args []string, usageLine string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s", usageLine)
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid argument %q: %w", args[0], err)
	}
	return v, nil
}

func twoInts(args []string, usageLine string) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("usage: %s", usageLine)
	}
	a, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid argument %q: %w", args[0], err)
	}
	b, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid argument %q: %w", args[1], err)
	}
	return a, b, nil
}
