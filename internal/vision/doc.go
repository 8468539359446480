// Package vision exposes the image operations the sticker pipeline can hand
// to OpenCV through gocv: bilateral smoothing, CLAHE, Canny, binary
// morphology, mask smoothing, external contours and GrabCut.
//
// OpenCV is linked only when building with -tags=gocv. Without the tag every
// operation returns ErrUnavailable and callers use their native
// implementations instead.
package vision
