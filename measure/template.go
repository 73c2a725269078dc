package measure

import "regexp"

// templateRefPattern mirrors cube.Measure's own template-ref pattern
// (`{name}` or `{Cube.name}`); duplicated here rather than exported
// from package cube to keep cube's parsing helpers package-private —
// this package only ever needs to find-and-replace, never to validate.
var templateRefPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)\}`)
