package devfs

import "defs"
import "fdops"
import "fs"

/// Regfile_t implements fdops.Fdops_i over a regular file in the
/// filesystem collaborator, tracking a per-descriptor read position
/// the way the original kernel's per-fd file_position field does.
type Regfile_t struct {
	fsys    *fs.Fs_t
	inodeNo int
	pos     int
}

/// OpenRegfile opens inode for reading from fsys, positioned at 0.
func OpenRegfile(fsys *fs.Fs_t, inodeNo int) *Regfile_t {
	return &Regfile_t{fsys: fsys, inodeNo: inodeNo}
}

/// Read copies up to dst's remaining length from the file starting at
/// the descriptor's current position, advancing it by the number of
/// bytes actually read.
func (r *Regfile_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, dst.Remain())
	n, err := r.fsys.Read_data(r.inodeNo, r.pos, buf)
	if err != 0 {
		return 0, err
	}
	c, err := dst.Uiowrite(buf[:n])
	if err != 0 {
		return 0, err
	}
	r.pos += c
	return c, 0
}

/// Write always fails: the filesystem collaborator is read-only.
func (r *Regfile_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	return 0, -defs.EINVAL
}

/// Close is a no-op: regular file descriptors hold no kernel resource
/// beyond the Regfile_t struct itself.
func (r *Regfile_t) Close() defs.Err_t {
	return 0
}

/// Reopen duplicates the descriptor at its current read position,
/// matching dup()'s usual shared-offset semantics.
func (r *Regfile_t) Reopen() defs.Err_t {
	return 0
}

/// Dirfile_t implements fdops.Fdops_i over the flat directory of
/// dentries: each Read returns the next entry's name, one per call,
/// matching the original kernel's directory_read contract.
type Dirfile_t struct {
	fsys *fs.Fs_t
	idx  int
}

/// OpenDirfile opens the directory for sequential enumeration.
func OpenDirfile(fsys *fs.Fs_t) *Dirfile_t {
	return &Dirfile_t{fsys: fsys}
}

/// Read copies the next dentry's name into dst and advances to the
/// next entry, returning 0 once every entry has been returned once.
func (d *Dirfile_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	dent, err := d.fsys.Read_dentry_by_index(d.idx)
	if err != 0 {
		return 0, 0
	}
	d.idx++
	n := len(dent.Name)
	if n > dst.Remain() {
		n = dst.Remain()
	}
	c, err := dst.Uiowrite(dent.Name[:n])
	if err != 0 {
		return 0, err
	}
	return c, 0
}

/// Write always fails: directories are read-only.
func (d *Dirfile_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	return 0, -defs.EINVAL
}

/// Close is a no-op.
func (d *Dirfile_t) Close() defs.Err_t {
	return 0
}

/// Reopen resets nothing: a dup'd directory descriptor continues from
/// the same enumeration index.
func (d *Dirfile_t) Reopen() defs.Err_t {
	return 0
}
