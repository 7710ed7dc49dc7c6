package cmn

import "github.com/golang/glog"

// Log is a thin wrapper over glog, matching the call shape of the
// teacher's vendored glog fork (Infof/Warningf/Errorf/V) so call sites
// elsewhere in this repo read the same way they do in aistore.
type logT struct{}

var Log logT

func (logT) Infof(format string, args ...interface{})    { glog.Infof(format, args...) }
func (logT) Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func (logT) Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
func (logT) Flush()                                      { glog.Flush() }

// V reports whether verbosity level lvl is enabled, mirroring glog.V.
func (logT) V(lvl glog.Level) glog.Verbose { return glog.V(lvl) }
