package patterns

import (
	"fmt"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
)

// Problem is a defect found by Check in one pattern.
type Problem struct {
	ID  uint
	Tag string
	Err error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s (id %d): %v", p.Tag, p.ID, p.Err)
}

// Check compiles every pattern on its own and runs its examples through it:
// each example must match and no negative example may. It returns one Problem
// per failing pattern, in set order.
func Check(s *Set) []Problem {
	var problems []Problem
	for i, p := range s.patterns {
		if err := checkEntry(p, s.entries[i]); err != nil {
			problems = append(problems, Problem{ID: p.ID, Tag: s.Tag(p.ID), Err: err})
		}
	}
	return problems
}

func checkEntry(p hyperscan.Pattern, e Entry) error {
	db, err := hyperscan.NewBlockDatabase(p)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := hyperscan.NewContext(false, func(matched *bool, _ uint, _, _ uint64) (hyperscan.Scan, error) {
		*matched = true
		return hyperscan.Terminate, nil
	})
	scanner, err := hyperscan.NewBlockScanner(db, ctx)
	if err != nil {
		return err
	}
	defer scanner.Close()

	matches := func(input string) (bool, error) {
		*ctx.UserData() = false
		if _, err := scanner.Scan([]byte(input)); err != nil {
			return false, err
		}
		return *ctx.UserData(), nil
	}

	for _, ex := range e.Examples {
		ok, err := matches(ex)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("example %q does not match", ex)
		}
	}
	for _, ex := range e.NegativeExamples {
		ok, err := matches(ex)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("negative example %q matches", ex)
		}
	}
	return nil
}
