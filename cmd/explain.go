package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cottand/dropck/frontend/ilerr"
	"github.com/spf13/cobra"
)

var ExplainCmd = &cobra.Command{
	Use:          "explain E0366",
	Short:        "Explain an error code",
	RunE:         runExplain,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var explanations = map[ilerr.ErrCode]string{
	ilerr.DropImplSpecialized: `An implementation of Drop was specialized to a subset of all possible
instantiations of the type it is for.

	struct Foo<T> { t: T }
	impl Drop for Foo<u32> { .. } // error

Drop impls must be written for every instantiation of the type, with the
same sequence of generic type and region parameters that is on the
struct or enum definition:

	impl<T> Drop for Foo<T> { .. }
`,
	ilerr.DropImplAddsRequirement: `An implementation of Drop required a bound that the type it is for does
not declare.

	struct Foo<T> { t: T }
	impl<T: Clone> Drop for Foo<T> { .. } // error

Values of Foo<T> may be dropped for any T, so the impl cannot assume
more. Declare the requirement on the type as well:

	struct Foo<T: Clone> { t: T }
`,
	ilerr.UnsatisfiedBound: `A type does not implement a trait it is required to implement, either by
a bound, a where clause or the checker itself.
`,
	ilerr.LifetimeBoundNotMet: `A region was required to outlive another one, but nothing declared or
implied makes it do so.

	struct Foo<'a, 'b> { r: &'a &'b u8 } // 'b must outlive 'a

When a dropped value holds a reference into a scope that ends before the
value is dropped, the destructor may observe dangling data.
`,
	ilerr.ParamMayNotLiveLongEnough: `A type parameter or projection must outlive a region in order for a value
holding it to be dropped, and no bound says it does. Consider adding an
explicit lifetime bound such as T: 'a.
`,
	ilerr.OverflowDropCheck: `Computing what must outlive the drop of a value overflowed. This happens
for types that grow without bound at every level of their own
definition.
`,
}

func parseCode(s string) (ilerr.ErrCode, error) {
	digits := strings.TrimPrefix(strings.ToUpper(s), "E")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return ilerr.None, fmt.Errorf("`%s` is not an error code", s)
	}
	return ilerr.ErrCode(n), nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	code, err := parseCode(args[0])
	if err != nil {
		return err
	}
	text, ok := explanations[code]
	if !ok {
		return fmt.Errorf("no extended information for %v", code)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}
