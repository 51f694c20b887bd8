package styles

// Nerd Font icons (requires a Nerd Font to display correctly)
const (
	IconGlobe     = "" //  browser/web
	IconVersion   = "" //  tag
	IconGitBranch = "" //  git branch
	IconCalendar  = "" //  calendar
	IconCode      = "" //  code
	IconGithub    = "" //  github
	IconHeart     = "" //  heart
	IconGo        = "" //  go gopher
	IconArrow     = "" //  arrow right
	IconArrowLeft = "" //  arrow left

	IconDoctor  = "" // stethoscope
	IconCheck   = "" // check
	IconX       = "" // x
	IconWarning = "" // warning
	IconInfo    = "" // info
	IconPackage = "" // archive/package
	IconConfig  = "" // config
	IconFolder  = "" // folder

	IconWindow = "" // window
	IconPlug   = "" // plug (remote connection)
	IconBolt   = "" // bolt (event)
)
