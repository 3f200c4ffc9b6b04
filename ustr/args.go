package ustr

// SplitCommand splits a command line into its program name and the
// remainder of the line (the argument string passed to getargs).
// Leading spaces before the remainder are dropped, mirroring the
// original kernel's argv[0]/args split.
func (us Ustr) SplitCommand() (Ustr, Ustr) {
	i := us.IndexByte(' ')
	if i == -1 {
		return us, MkUstr()
	}
	prog := us[:i]
	rest := us[i+1:]
	for len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return prog, rest
}
