// Command unify runs a few representative unification problems against the
// engine, printing each solution substitution as it is enumerated.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitrdm/gounify/pkg/kernel"
	"github.com/gitrdm/gounify/pkg/unify"
)

var (
	maxSteps uint64
	maxSols  int
	verbose  bool
)

func main() {
	root := &cobra.Command{
		Use:   "unify",
		Short: "Demonstrates the higher-order unifier on built-in scenarios",
	}
	root.PersistentFlags().Uint64Var(&maxSteps, "max-steps", unify.DefaultMaxSteps, "hard step budget for the engine")
	root.PersistentFlags().IntVar(&maxSols, "solutions", 4, "maximum number of solutions to enumerate")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine decisions")

	root.AddCommand(
		&cobra.Command{
			Use:   "pattern",
			Short: "Pattern unification: ?m x =?= f x",
			RunE:  func(*cobra.Command, []string) error { return runPattern() },
		},
		&cobra.Command{
			Use:   "higher-order",
			Short: "Flex-rigid branching with backtracking: ?m x x =?= x",
			RunE:  func(*cobra.Command, []string) error { return runHigherOrder() },
		},
		&cobra.Command{
			Use:   "levels",
			Short: "Universe-level unification: succ ?u =?= succ (succ v)",
			RunE:  func(*cobra.Command, []string) error { return runLevels() },
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func config() unify.Config {
	cfg := unify.DefaultConfig()
	cfg.MaxSteps = maxSteps
	cfg.UseException = false
	if verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return cfg
}

// demoEnv declares A : Type, f : A -> A, and c : A.
func demoEnv() *kernel.Environment {
	env := kernel.NewEnvironment()
	a := kernel.MkConst("A")
	env.MustAddDecl(kernel.Declaration{Name: "A", Type: kernel.MkType()})
	env.MustAddDecl(kernel.Declaration{Name: "f", Type: kernel.MkArrow(a, a)})
	env.MustAddDecl(kernel.Declaration{Name: "c", Type: a})
	return env
}

func enumerate(cs []kernel.Constraint, metas []*kernel.Meta) error {
	env := demoEnv()
	ngen := kernel.NewNameGenerator("demo")
	stream := unify.Unify(env, cs, ngen, config())
	n := 0
	for n < maxSols {
		s, ok, err := stream.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		n++
		fmt.Printf("solution %d:\n", n)
		for _, m := range metas {
			v, _ := s.Instantiate(m)
			fmt.Printf("  ?%s := %s\n", m.Name(), v)
		}
	}
	if n == 0 {
		fmt.Println("no solutions")
	}
	return nil
}

func runPattern() error {
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	x := kernel.MkSimpleLocal("x", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, a))
	c := kernel.MkEqConstraint(
		kernel.MkApp(m, x),
		kernel.MkApp(f, x),
		kernel.MkAssertedJustification("?m x =?= f x"),
	)
	return enumerate([]kernel.Constraint{c}, []*kernel.Meta{m})
}

func runHigherOrder() error {
	a := kernel.MkConst("A")
	x := kernel.MkSimpleLocal("x", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, kernel.MkArrow(a, a)))
	// duplicate locals defeat the pattern rule, forcing projection search
	c := kernel.MkEqConstraint(
		kernel.MkApp(m, x, x),
		x,
		kernel.MkAssertedJustification("?m x x =?= x"),
	)
	return enumerate([]kernel.Constraint{c}, []*kernel.Meta{m})
}

func runLevels() error {
	v := kernel.MkLevelParam("v")
	u := kernel.MkLevelMeta("u")
	c := kernel.MkLevelEqConstraint(
		kernel.MkLevelSucc(u),
		kernel.MkLevelSucc(kernel.MkLevelSucc(v)),
		kernel.MkAssertedJustification("succ ?u =?= succ (succ v)"),
	)
	env := demoEnv()
	ngen := kernel.NewNameGenerator("demo")
	stream := unify.Unify(env, []kernel.Constraint{c}, ngen, config())
	s, ok, err := stream.Next()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no solutions")
		return nil
	}
	lvl, _ := s.InstantiateLevel(u)
	fmt.Printf("solution: ?u := %s\n", lvl)
	return nil
}
