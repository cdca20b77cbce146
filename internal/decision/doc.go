// Package decision turns analysis signals and a duration delta into a trim
// proposal. It prefers tail trims, refuses to cut into padded speech, and
// explains every choice through an ordered reasoning trail. The package is
// deterministic: identical inputs always produce identical decisions.
package decision
