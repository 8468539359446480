//go:build !gocv

package vision

import "image"

// Available reports whether OpenCV is linked into this build.
func Available() bool { return false }

// Stubs for builds without OpenCV.

func Bilateral(*image.Gray, int, float64, float64) (*image.Gray, error) { return nil, ErrUnavailable }

func CLAHE(*image.Gray, float64, int) (*image.Gray, error) { return nil, ErrUnavailable }

func Canny(*image.Gray, int, int) (*image.Gray, error) { return nil, ErrUnavailable }

func Close(*image.Gray, int, int) (*image.Gray, error) { return nil, ErrUnavailable }

func Dilate(*image.Gray, int, int) (*image.Gray, error) { return nil, ErrUnavailable }

func SmoothMask(*image.Gray, float64, uint8) (*image.Gray, error) { return nil, ErrUnavailable }

func FindExternal(*image.Gray) ([][]image.Point, error) { return nil, ErrUnavailable }

func GrabCut(*image.NRGBA, []uint8, int) ([]uint8, error) { return nil, ErrUnavailable }
