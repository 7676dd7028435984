// Package motion filters raw per-frame positions of one animal into
// trustworthy detection intervals.
//
// Two gates run in order over the samples of a single time window:
//
//   - the speed gate drops any sample whose incoming instantaneous speed
//     leaves [MinSpeed, MaxSpeed]; a dropped sample ends the current run;
//   - the stationary gate removes every span of StationaryFrames consecutive
//     samples whose positions never move StationaryDistance apart, since a
//     motionless track usually means a lost or frozen detection.
//
// What remains is grouped into contiguous frame intervals. No SQL lives in
// this package; callers load samples and persist intervals.
package motion
