package linear

import (
	"errors"
	"math"

	"heatfem/linalg"

	"gonum.org/v1/gonum/mat"
)

// Dense direct factorizations. The sparse matrix is expanded once per
// factorization, the factors are reused for every right hand side.

func factorCholesky(a *linalg.Matrix) (solveFunc, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a.ToSymDense()); !ok {
		return nil, newError(SingularMatrix, "Cholesky decomposition failed - matrix not symmetric positive-definite")
	}
	if c := chol.Cond(); !(c < mat.ConditionTolerance) {
		return nil, newError(SingularMatrix, "Cholesky decomposition failed - matrix is singular (condition number %g)", c)
	}
	return func(dst, b *mat.VecDense) (int, error) {
		if err := chol.SolveVecTo(dst, b); err != nil {
			return 0, conditionError("Cholesky", err)
		}
		return 0, nil
	}, nil
}

func factorLU(a *linalg.Matrix) (solveFunc, error) {
	var lu mat.LU
	lu.Factorize(a.ToDense())
	logDet, _ := lu.LogDet()
	if math.IsInf(logDet, -1) || !(lu.Cond() < mat.ConditionTolerance) {
		return nil, newError(SingularMatrix, "LU decomposition failed - matrix is singular")
	}
	return func(dst, b *mat.VecDense) (int, error) {
		if err := lu.SolveVecTo(dst, false, b); err != nil {
			return 0, conditionError("LU", err)
		}
		return 0, nil
	}, nil
}

func factorQR(a *linalg.Matrix) (solveFunc, error) {
	var qr mat.QR
	qr.Factorize(a.ToDense())
	if !(qr.Cond() < mat.ConditionTolerance) {
		return nil, newError(SingularMatrix, "QR decomposition failed - matrix is rank deficient")
	}
	return func(dst, b *mat.VecDense) (int, error) {
		if err := qr.SolveVecTo(dst, false, b); err != nil {
			return 0, conditionError("QR", err)
		}
		return 0, nil
	}, nil
}

func conditionError(name string, err error) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return newError(NumericalInstability, "%s solve failed: condition number %g", name, float64(cond))
	}
	return newError(NumericalInstability, "%s solve failed: %v", name, err)
}
